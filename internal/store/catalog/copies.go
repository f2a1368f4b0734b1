package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/5w1tchy/library-api/internal/store/dbx"
	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// AddCopy creates an available copy of book bookID in the library with
// the given slug. Unknown library or book is ErrNotFound.
func (s *Store) AddCopy(ctx context.Context, librarySlug string, bookID int64) (Copy, error) {
	var c Copy
	err := dbx.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var libraryID int64
		if err := tx.GetContext(ctx, &libraryID, `SELECT id FROM libraries WHERE slug = $1`, librarySlug); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: library %q", ErrNotFound, librarySlug)
			}
			return fmt.Errorf("lookup library: %w", err)
		}
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, bookID); err != nil {
			return fmt.Errorf("lookup book: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: book %d", ErrNotFound, bookID)
		}
		return tx.GetContext(ctx, &c, `
			INSERT INTO book_copies (book_id, library_id) VALUES ($1, $2)
			RETURNING id, book_id, library_id, borrow_date`, bookID, libraryID)
	})
	if err != nil {
		return Copy{}, err
	}
	c.Resolve()
	s.bump(ctx)
	s.log.Info("copy added", zap.Int64("copy_id", c.ID), zap.Int64("book_id", bookID), zap.String("library", librarySlug))
	return c, nil
}

// BooksInLibrary returns one page of the books with at least one copy in
// the library, ordered by title, each carrying its copies in that library.
// Count is the total number of such books.
func (s *Store) BooksInLibrary(ctx context.Context, libraryID int64, page, size int) (BooksPage, error) {
	if page < 1 {
		page = 1
	}
	block := fmt.Sprintf("books:%d:%d:%d", libraryID, page, size)
	c := newCache(ctx, s.rdb)
	var out BooksPage
	if c.get(ctx, block, &out) {
		return out, nil
	}

	inLibrary := pg.From("book_copies").Select("book_id").Where(goqu.C("library_id").Eq(libraryID))

	countQ, countArgs, err := toSQL(pg.From("book_copies").
		Select(goqu.COUNT(goqu.DISTINCT("book_id"))).
		Where(goqu.C("library_id").Eq(libraryID)))
	if err != nil {
		return BooksPage{}, fmt.Errorf("build count query: %w", err)
	}
	if err := s.db.GetContext(ctx, &out.Count, countQ, countArgs...); err != nil {
		return BooksPage{}, fmt.Errorf("count books: %w", err)
	}

	booksQ, booksArgs, err := toSQL(pg.From(goqu.T("books").As("b")).
		Select(bookColumns...).
		Where(goqu.I("b.id").In(inLibrary)).
		Order(goqu.L("lower(b.title)").Asc(), goqu.I("b.id").Asc()).
		Limit(uint(size)).
		Offset(uint((page - 1) * size)))
	if err != nil {
		return BooksPage{}, fmt.Errorf("build books query: %w", err)
	}
	var books []Book
	if err := s.db.SelectContext(ctx, &books, booksQ, booksArgs...); err != nil {
		return BooksPage{}, fmt.Errorf("list books: %w", err)
	}

	out.Books = make([]BookWithCopies, 0, len(books))
	if len(books) == 0 {
		c.set(ctx, block, out)
		return out, nil
	}

	ids := make([]int64, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	copiesQ, copiesArgs, err := toSQL(CopiesSelect().
		Where(goqu.I("c.library_id").Eq(libraryID), goqu.I("c.book_id").In(ids)).
		Order(goqu.I("c.id").Asc()))
	if err != nil {
		return BooksPage{}, fmt.Errorf("build copies query: %w", err)
	}
	var copies []Copy
	if err := s.db.SelectContext(ctx, &copies, copiesQ, copiesArgs...); err != nil {
		return BooksPage{}, fmt.Errorf("list copies: %w", err)
	}
	ResolveAll(copies)

	byBook := make(map[int64][]Copy, len(books))
	for _, cp := range copies {
		byBook[cp.BookID] = append(byBook[cp.BookID], cp)
	}
	for _, b := range books {
		cs := byBook[b.ID]
		if cs == nil {
			cs = []Copy{}
		}
		out.Books = append(out.Books, BookWithCopies{Book: b, Copies: cs})
	}

	c.set(ctx, block, out)
	return out, nil
}
