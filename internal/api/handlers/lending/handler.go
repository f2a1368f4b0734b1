package lending

import (
	"context"
	"errors"
	"net/http"

	"github.com/5w1tchy/library-api/internal/api/apperr"
	"github.com/5w1tchy/library-api/internal/api/httpx"
	"github.com/5w1tchy/library-api/internal/api/middlewares"
	"github.com/5w1tchy/library-api/internal/store/catalog"
	storelending "github.com/5w1tchy/library-api/internal/store/lending"
	"github.com/5w1tchy/library-api/internal/validate"
	"go.uber.org/zap"
)

type Store interface {
	Borrow(ctx context.Context, copyID int64, userID string) (catalog.Copy, error)
	Return(ctx context.Context, copyID int64) (catalog.Copy, error)
}

type Handler struct {
	Store Store
	log   *zap.Logger
}

func New(s Store) *Handler {
	return &Handler{Store: s, log: zap.L().Named("lending")}
}

// Register mounts the copy routes behind auth.
func (h *Handler) Register(mux *http.ServeMux, auth middlewares.Middleware) {
	mux.Handle("POST /api/copies/{id}/borrow", auth(http.HandlerFunc(h.Borrow)))
	mux.Handle("POST /api/copies/{id}/return", auth(http.HandlerFunc(h.Return)))
}

// POST /api/copies/{id}/borrow
func (h *Handler) Borrow(w http.ResponseWriter, r *http.Request) {
	id, ok := copyID(w, r)
	if !ok {
		return
	}
	userID, ok := middlewares.UserIDFrom(r.Context())
	if !ok {
		apperr.Unauthorized(w, r)
		return
	}

	c, err := h.Store.Borrow(r.Context(), id, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.Info("copy borrowed", zap.Int64("copy_id", id), zap.String("user_id", userID))
	httpx.OKMessage(w, "Book borrowed", c)
}

// POST /api/copies/{id}/return
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := copyID(w, r)
	if !ok {
		return
	}

	c, err := h.Store.Return(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	userID, _ := middlewares.UserIDFrom(r.Context())
	h.log.Info("copy returned", zap.Int64("copy_id", id), zap.String("user_id", userID))
	httpx.OKMessage(w, "Book returned", c)
}

// copyID reads the path id. Anything but a positive integer cannot name a
// copy, so it is a 404 like an unknown id.
func copyID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := validate.PositiveID(r.PathValue("id"))
	if err != nil {
		apperr.NotFound(w, r, "copy not found")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storelending.ErrNotFound):
		apperr.NotFound(w, r, "copy not found")
	case errors.Is(err, storelending.ErrAlreadyBorrowed):
		apperr.WriteStatus(w, r, http.StatusConflict, "Conflict", "copy is already borrowed")
	default:
		apperr.HandleDBError(w, r, err, "Lending failed")
	}
}
