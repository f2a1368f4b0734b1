package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"
)

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) CreateBook(ctx context.Context, nb NewBook) (Book, error) {
	var b Book
	err := s.db.GetContext(ctx, &b, `
		INSERT INTO books (author, title, subtitle, publication_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id, author, title, subtitle, publication_date, cover_key, created_at`,
		nb.Author, nb.Title, nb.Subtitle, nb.PublicationDate)
	if err != nil {
		return Book{}, fmt.Errorf("insert book: %w", err)
	}
	s.bump(ctx)
	s.log.Info("book created", zap.Int64("book_id", b.ID))
	return b, nil
}

func (s *Store) GetBook(ctx context.Context, id int64) (Book, error) {
	q, args, err := toSQL(pg.From(goqu.T("books").As("b")).
		Select(bookColumns...).
		Where(goqu.I("b.id").Eq(id)))
	if err != nil {
		return Book{}, fmt.Errorf("build book query: %w", err)
	}
	var b Book
	if err := s.db.GetContext(ctx, &b, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

// Autocomplete finds books whose title contains q (case-insensitive),
// ordered by title. It fetches limit+1 rows to report whether another page
// exists. An empty q matches every book.
func (s *Store) Autocomplete(ctx context.Context, q string, page, limit int) ([]Book, bool, error) {
	if page < 1 {
		page = 1
	}
	ds := pg.From(goqu.T("books").As("b")).
		Select(goqu.I("b.id"), goqu.I("b.title")).
		Order(goqu.L("lower(b.title)").Asc(), goqu.I("b.id").Asc()).
		Limit(uint(limit + 1)).
		Offset(uint((page - 1) * limit))
	if q = strings.TrimSpace(q); q != "" {
		pattern := "%" + likeReplacer.Replace(q) + "%"
		ds = ds.Where(goqu.I("b.title").ILike(pattern))
	}
	query, args, err := toSQL(ds)
	if err != nil {
		return nil, false, fmt.Errorf("build autocomplete query: %w", err)
	}

	books := make([]Book, 0, limit+1)
	if err := s.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, false, fmt.Errorf("autocomplete: %w", err)
	}
	more := len(books) > limit
	if more {
		books = books[:limit]
	}
	return books, more, nil
}

// SetCoverKey records the object key of the book's cover image.
func (s *Store) SetCoverKey(ctx context.Context, id int64, key string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE books SET cover_key = $2 WHERE id = $1`, id, key)
	if err != nil {
		return fmt.Errorf("set cover key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.bump(ctx)
	return nil
}
