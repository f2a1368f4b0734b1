package catalog

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/5w1tchy/library-api/internal/api/apperr"
	"github.com/5w1tchy/library-api/internal/api/httpx"
	"github.com/5w1tchy/library-api/internal/store/catalog"
	"github.com/5w1tchy/library-api/internal/validate"
	"go.uber.org/zap"
)

type libraryView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Books string `json:"books"`
}

func booksPath(slug string) string { return "/api/libraries/" + url.PathEscape(slug) + "/books/" }

func (h *Handler) libraryView(r *http.Request, lib catalog.Library) libraryView {
	return libraryView{
		ID:    lib.ID,
		Name:  lib.Name,
		Slug:  lib.Slug,
		Books: httpx.AbsoluteURL(r, booksPath(lib.Slug), nil),
	}
}

// GET /api/libraries/
func (h *Handler) ListLibraries(w http.ResponseWriter, r *http.Request) {
	libs, err := h.Store.Libraries(r.Context())
	if err != nil {
		h.fail(w, r, "library", err)
		return
	}
	out := make([]libraryView, 0, len(libs))
	for _, lib := range libs {
		out = append(out, h.libraryView(r, lib))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"count": len(out), "results": out})
}

// GET /api/libraries/{slug}/
func (h *Handler) GetLibrary(w http.ResponseWriter, r *http.Request) {
	lib, err := h.Store.LibraryBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.fail(w, r, "library", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.libraryView(r, lib))
}

type bookView struct {
	ID              int64          `json:"id"`
	Author          string         `json:"author"`
	Title           string         `json:"title"`
	Subtitle        string         `json:"subtitle"`
	PublicationDate catalog.Date   `json:"publication_date"`
	CoverURL        *string        `json:"cover_url"`
	Copies          []catalog.Copy `json:"copies,omitempty"`
}

func (h *Handler) bookView(r *http.Request, b catalog.Book, copies []catalog.Copy) bookView {
	return bookView{
		ID:              b.ID,
		Author:          b.Author,
		Title:           b.Title,
		Subtitle:        b.Subtitle,
		PublicationDate: b.PublicationDate,
		CoverURL:        h.coverURL(r, b),
		Copies:          copies,
	}
}

type booksPageView struct {
	Count    int        `json:"count"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []bookView `json:"results"`
}

// GET /api/libraries/{slug}/books/?page=&page_size=
func (h *Handler) LibraryBooks(w http.ResponseWriter, r *http.Request) {
	lib, err := h.Store.LibraryBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.fail(w, r, "library", err)
		return
	}
	q := r.URL.Query()
	page, size := validate.ClampPage(q.Get("page"), q.Get("page_size"), booksPageSize, booksPageMax)

	res, err := h.Store.BooksInLibrary(r.Context(), lib.ID, page, size)
	if err != nil {
		h.fail(w, r, "library", err)
		return
	}
	if page > 1 && page-1 > (res.Count-1)/size {
		apperr.NotFound(w, r, "Invalid page")
		return
	}

	out := booksPageView{Count: res.Count, Results: make([]bookView, 0, len(res.Books))}
	for _, b := range res.Books {
		copies := b.Copies
		if copies == nil {
			copies = []catalog.Copy{}
		}
		out.Results = append(out.Results, h.bookView(r, b.Book, copies))
	}
	if page*size < res.Count {
		out.Next = pageLink(r, page+1)
	}
	if page > 1 {
		out.Previous = pageLink(r, page-1)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// pageLink keeps the request's query and swaps the page. Page 1 drops the
// parameter.
func pageLink(r *http.Request, page int) *string {
	q := r.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u := httpx.AbsoluteURL(r, r.URL.Path, q)
	return &u
}

// GET /api/books/{id}
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := validate.PositiveID(r.PathValue("id"))
	if err != nil {
		apperr.NotFound(w, r, "book not found")
		return
	}
	b, err := h.Store.GetBook(r.Context(), id)
	if err != nil {
		h.fail(w, r, "book", err)
		return
	}
	httpx.OK(w, h.bookView(r, b, nil))
}

func (h *Handler) coverURL(r *http.Request, b catalog.Book) *string {
	if b.CoverKey == nil || *b.CoverKey == "" || h.Covers == nil {
		return nil
	}
	u, err := h.Covers.PresignDownload(r.Context(), *b.CoverKey)
	if err != nil {
		h.log.Warn("presign cover", zap.Int64("book_id", b.ID), zap.Error(err))
		return nil
	}
	return &u
}
