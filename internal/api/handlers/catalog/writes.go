package catalog

import (
	"net/http"

	"github.com/5w1tchy/library-api/internal/api/apperr"
	"github.com/5w1tchy/library-api/internal/api/httpx"
	"github.com/5w1tchy/library-api/internal/store/catalog"
	"github.com/5w1tchy/library-api/internal/validate"
)

type createBookRequest struct {
	Author          string `json:"author"`
	Title           string `json:"title"`
	Subtitle        string `json:"subtitle"`
	PublicationDate string `json:"publication_date"`
}

// POST /api/books
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		apperr.BadRequest(w, r, "invalid JSON body")
		return
	}

	var nb catalog.NewBook
	var err error
	if nb.Author, err = validate.RequireBounded("author", req.Author, 1, 255); err != nil {
		apperr.Invalid(w, r, "author", err.Error())
		return
	}
	if nb.Title, err = validate.RequireBounded("title", req.Title, 1, 255); err != nil {
		apperr.Invalid(w, r, "title", err.Error())
		return
	}
	if nb.Subtitle, err = validate.RequireBounded("subtitle", req.Subtitle, 0, 255); err != nil {
		apperr.Invalid(w, r, "subtitle", err.Error())
		return
	}
	d, err := validate.Date("publication_date", req.PublicationDate)
	if err != nil {
		apperr.Invalid(w, r, "publication_date", err.Error())
		return
	}
	nb.PublicationDate = catalog.NewDate(d)

	b, err := h.Store.CreateBook(r.Context(), nb)
	if err != nil {
		h.fail(w, r, "book", err)
		return
	}
	httpx.Created(w, h.bookView(r, b, nil))
}

type createLibraryRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// POST /api/libraries
func (h *Handler) CreateLibrary(w http.ResponseWriter, r *http.Request) {
	var req createLibraryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		apperr.BadRequest(w, r, "invalid JSON body")
		return
	}
	name, err := validate.RequireBounded("name", req.Name, 1, 255)
	if err != nil {
		apperr.Invalid(w, r, "name", err.Error())
		return
	}
	var slug string
	if req.Slug != "" {
		if slug, err = validate.Slug(req.Slug); err != nil {
			apperr.Invalid(w, r, "slug", err.Error())
			return
		}
	}

	lib, err := h.Store.CreateLibrary(r.Context(), name, slug)
	if err != nil {
		h.fail(w, r, "library", err)
		return
	}
	httpx.Created(w, h.libraryView(r, lib))
}

type addCopyRequest struct {
	BookID int64 `json:"book_id"`
}

// POST /api/libraries/{slug}/copies
func (h *Handler) AddCopy(w http.ResponseWriter, r *http.Request) {
	var req addCopyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		apperr.BadRequest(w, r, "invalid JSON body")
		return
	}
	if req.BookID <= 0 {
		apperr.Invalid(w, r, "book_id", "book_id must be a positive integer")
		return
	}

	c, err := h.Store.AddCopy(r.Context(), r.PathValue("slug"), req.BookID)
	if err != nil {
		h.fail(w, r, "library or book", err)
		return
	}
	httpx.Created(w, c)
}
