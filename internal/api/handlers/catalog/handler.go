package catalog

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/5w1tchy/library-api/internal/api/apperr"
	"github.com/5w1tchy/library-api/internal/api/middlewares"
	"github.com/5w1tchy/library-api/internal/store/catalog"
	"go.uber.org/zap"
)

// AutocompleteRoute is the public name of the title search endpoint.
const AutocompleteRoute = "book-autocomplete"

const (
	autocompletePageSize = 10
	booksPageSize        = 20
	booksPageMax         = 100
)

type Store interface {
	Autocomplete(ctx context.Context, q string, page, limit int) ([]catalog.Book, bool, error)
	Libraries(ctx context.Context) ([]catalog.Library, error)
	LibraryBySlug(ctx context.Context, slug string) (catalog.Library, error)
	BooksInLibrary(ctx context.Context, libraryID int64, page, size int) (catalog.BooksPage, error)
	GetBook(ctx context.Context, id int64) (catalog.Book, error)
	CreateBook(ctx context.Context, nb catalog.NewBook) (catalog.Book, error)
	CreateLibrary(ctx context.Context, name, slug string) (catalog.Library, error)
	AddCopy(ctx context.Context, librarySlug string, bookID int64) (catalog.Copy, error)
	SetCoverKey(ctx context.Context, id int64, key string) error
}

// Covers presigns cover objects. A nil Covers means storage is not configured.
type Covers interface {
	PresignUpload(ctx context.Context, objectKey, contentType string) (string, error)
	PresignDownload(ctx context.Context, objectKey string) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
	Expires() time.Duration
}

type Handler struct {
	Store  Store
	Covers Covers
	log    *zap.Logger
}

func New(s Store, covers Covers) *Handler {
	return &Handler{Store: s, Covers: covers, log: zap.L().Named("catalog")}
}

// Routes groups the middlewares the catalog routes sit behind.
type Routes struct {
	Optional  middlewares.Middleware
	Librarian middlewares.Middleware
}

func (h *Handler) Register(mux *http.ServeMux, mw Routes) {
	mux.Handle("GET /"+AutocompleteRoute, mw.Optional(http.HandlerFunc(h.Autocomplete)))

	mux.HandleFunc("GET /api/libraries/{$}", h.ListLibraries)
	mux.HandleFunc("GET /api/libraries/{slug}/{$}", h.GetLibrary)
	mux.HandleFunc("GET /api/libraries/{slug}/books/{$}", h.LibraryBooks)
	mux.HandleFunc("GET /api/books/{id}", h.GetBook)
	mux.HandleFunc("GET /api/books/{id}/cover", h.CoverRedirect)

	mux.Handle("POST /api/books", mw.Librarian(http.HandlerFunc(h.CreateBook)))
	mux.Handle("POST /api/libraries", mw.Librarian(http.HandlerFunc(h.CreateLibrary)))
	mux.Handle("POST /api/libraries/{slug}/copies", mw.Librarian(http.HandlerFunc(h.AddCopy)))
	mux.Handle("POST /api/books/{id}/cover", mw.Librarian(http.HandlerFunc(h.PresignCover)))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, what string, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		apperr.NotFound(w, r, what+" not found")
	case errors.Is(err, catalog.ErrConflict):
		apperr.WriteStatus(w, r, http.StatusConflict, "Conflict", err.Error())
	default:
		apperr.HandleDBError(w, r, err, "Catalog request failed")
	}
}
