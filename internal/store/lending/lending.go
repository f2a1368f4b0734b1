// Package lending moves book copies between available and borrowed and
// keeps the loan history in step.
package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/5w1tchy/library-api/internal/store/catalog"
	"github.com/5w1tchy/library-api/internal/store/dbx"
	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrNotFound        = errors.New("lending: copy not found")
	ErrAlreadyBorrowed = errors.New("lending: copy is borrowed by another user")
)

type Store struct {
	db  *sqlx.DB
	rdb *redis.Client
	now func() time.Time
	log *zap.Logger
}

// New builds a Store. rdb may be nil; it is only used to invalidate the
// catalog cache.
func New(db *sqlx.DB, rdb *redis.Client) *Store {
	return &Store{db: db, rdb: rdb, now: time.Now, log: zap.L().Named("lending")}
}

// Borrow lends copyID to userID. Borrowing a copy the user already holds
// returns it unchanged.
func (s *Store) Borrow(ctx context.Context, copyID int64, userID string) (catalog.Copy, error) {
	var (
		out     catalog.Copy
		changed bool
	)
	err := dbx.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		now := s.now().UTC()
		res, err := tx.ExecContext(ctx,
			`UPDATE book_copies SET user_id = $2, borrow_date = $3 WHERE id = $1 AND user_id IS NULL`,
			copyID, userID, now)
		if err != nil {
			return fmt.Errorf("borrow copy: %w", err)
		}
		if dbx.RowsAffected(res) == 1 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO loans (copy_id, user_id, borrowed_at) VALUES ($1, $2, $3)`,
				copyID, userID, now); err != nil {
				return fmt.Errorf("open loan: %w", err)
			}
			changed = true
		}

		c, err := getCopy(ctx, tx, copyID)
		if err != nil {
			return err
		}
		if !changed && (c.UserID == nil || *c.UserID != userID) {
			return ErrAlreadyBorrowed
		}
		out = c
		return nil
	})
	if err != nil {
		return catalog.Copy{}, err
	}
	if changed {
		s.invalidate(ctx)
		s.log.Info("copy borrowed", zap.Int64("copy_id", copyID), zap.String("user_id", userID))
	}
	return out, nil
}

// Return makes copyID available again. Returning an available copy is a
// no-op.
func (s *Store) Return(ctx context.Context, copyID int64) (catalog.Copy, error) {
	var (
		out     catalog.Copy
		changed bool
	)
	err := dbx.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE book_copies SET user_id = NULL, borrow_date = NULL WHERE id = $1 AND user_id IS NOT NULL`,
			copyID)
		if err != nil {
			return fmt.Errorf("return copy: %w", err)
		}
		if dbx.RowsAffected(res) == 1 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE loans SET returned_at = $2 WHERE copy_id = $1 AND returned_at IS NULL`,
				copyID, s.now().UTC()); err != nil {
				return fmt.Errorf("close loan: %w", err)
			}
			changed = true
		}
		c, err := getCopy(ctx, tx, copyID)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return catalog.Copy{}, err
	}
	if changed {
		s.invalidate(ctx)
		s.log.Info("copy returned", zap.Int64("copy_id", copyID))
	}
	return out, nil
}

// BorrowedBy lists the copies userID currently holds, oldest loan first.
func (s *Store) BorrowedBy(ctx context.Context, userID string) ([]catalog.Copy, error) {
	q, args, err := catalog.CopiesSelect().
		Where(goqu.I("c.user_id").Eq(userID)).
		Order(goqu.I("c.borrow_date").Asc(), goqu.I("c.id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build borrowed query: %w", err)
	}
	copies := []catalog.Copy{}
	if err := s.db.SelectContext(ctx, &copies, q, args...); err != nil {
		return nil, fmt.Errorf("list borrowed copies: %w", err)
	}
	catalog.ResolveAll(copies)
	return copies, nil
}

// PruneLoans deletes closed loans returned before cutoff.
func (s *Store) PruneLoans(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM loans WHERE returned_at IS NOT NULL AND returned_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune loans: %w", err)
	}
	return dbx.RowsAffected(res), nil
}

func getCopy(ctx context.Context, conn dbx.Conn, id int64) (catalog.Copy, error) {
	q, args, err := catalog.CopiesSelect().
		Where(goqu.I("c.id").Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return catalog.Copy{}, fmt.Errorf("build copy query: %w", err)
	}
	var c catalog.Copy
	if err := conn.GetContext(ctx, &c, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Copy{}, ErrNotFound
		}
		return catalog.Copy{}, fmt.Errorf("get copy: %w", err)
	}
	c.Resolve()
	return c, nil
}

func (s *Store) invalidate(ctx context.Context) {
	if err := catalog.BumpVersion(ctx, s.rdb); err != nil {
		s.log.Warn("cache version bump failed", zap.Error(err))
	}
}
