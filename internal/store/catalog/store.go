package catalog

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const dialectPostgres = "postgres"

var pg = goqu.Dialect(dialectPostgres)

// Store serves the catalog: books, libraries and their copies.
type Store struct {
	db  *sqlx.DB
	rdb *redis.Client
	log *zap.Logger
}

// New builds a Store. rdb may be nil, which disables caching.
func New(db *sqlx.DB, rdb *redis.Client) *Store {
	return &Store{db: db, rdb: rdb, log: zap.L().Named("catalog")}
}

func (s *Store) bump(ctx context.Context) {
	if err := BumpVersion(ctx, s.rdb); err != nil {
		s.log.Warn("cache version bump failed", zap.Error(err))
	}
}

func toSQL(ds *goqu.SelectDataset) (string, []any, error) {
	return ds.Prepared(true).ToSQL()
}

var bookColumns = []any{
	goqu.I("b.id"), goqu.I("b.author"), goqu.I("b.title"), goqu.I("b.subtitle"),
	goqu.I("b.publication_date"), goqu.I("b.cover_key"), goqu.I("b.created_at"),
}

var copyColumns = []any{
	goqu.I("c.id"), goqu.I("c.book_id"), goqu.I("c.library_id"),
	goqu.Cast(goqu.I("c.user_id"), "text").As("user_id"),
	goqu.I("u.username"), goqu.I("c.borrow_date"),
}

// CopiesSelect is the base SELECT for copies joined with their holder.
func CopiesSelect() *goqu.SelectDataset {
	return pg.From(goqu.T("book_copies").As("c")).
		LeftJoin(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("c.user_id")))).
		Select(copyColumns...)
}
