package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/5w1tchy/library-api/internal/store/dbx"
	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const slugTries = 10

// CreateLibrary inserts a library. With an explicit slug a clash is
// ErrConflict; without one the slug is derived from name and suffixed
// until unique.
func (s *Store) CreateLibrary(ctx context.Context, name, slug string) (Library, error) {
	var lib Library
	err := dbx.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if slug == "" {
			var err error
			if slug, err = uniqueSlug(ctx, tx, Slugify(name), slugTries); err != nil {
				return err
			}
		}
		err := tx.GetContext(ctx, &lib, `
			INSERT INTO libraries (name, slug) VALUES ($1, $2)
			RETURNING id, name, slug, created_at`, name, slug)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("%w: slug %q is taken", ErrConflict, slug)
			}
			return fmt.Errorf("insert library: %w", err)
		}
		return nil
	})
	if err != nil {
		return Library{}, err
	}
	s.bump(ctx)
	s.log.Info("library created", zap.String("slug", lib.Slug))
	return lib, nil
}

func (s *Store) LibraryBySlug(ctx context.Context, slug string) (Library, error) {
	q, args, err := toSQL(pg.From("libraries").
		Select("id", "name", "slug", "created_at").
		Where(goqu.C("slug").Eq(slug)))
	if err != nil {
		return Library{}, fmt.Errorf("build library query: %w", err)
	}
	var lib Library
	if err := s.db.GetContext(ctx, &lib, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Library{}, ErrNotFound
		}
		return Library{}, fmt.Errorf("get library: %w", err)
	}
	return lib, nil
}

// Libraries lists every library by name.
func (s *Store) Libraries(ctx context.Context) ([]Library, error) {
	c := newCache(ctx, s.rdb)
	libs := []Library{}
	if c.get(ctx, "libraries", &libs) {
		return libs, nil
	}

	q, args, err := toSQL(pg.From("libraries").
		Select("id", "name", "slug", "created_at").
		Order(goqu.C("name").Asc(), goqu.C("id").Asc()))
	if err != nil {
		return nil, fmt.Errorf("build libraries query: %w", err)
	}
	if err := s.db.SelectContext(ctx, &libs, q, args...); err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	c.set(ctx, "libraries", libs)
	return libs, nil
}
