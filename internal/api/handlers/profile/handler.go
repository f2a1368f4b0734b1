package profile

import (
	"context"
	"errors"
	"net/http"

	"github.com/5w1tchy/library-api/internal/api/apperr"
	"github.com/5w1tchy/library-api/internal/api/httpx"
	"github.com/5w1tchy/library-api/internal/api/middlewares"
	"github.com/5w1tchy/library-api/internal/auth"
	"github.com/5w1tchy/library-api/internal/store/catalog"
)

type Users interface {
	FindByID(ctx context.Context, id string) (auth.User, error)
}

type Loans interface {
	BorrowedBy(ctx context.Context, userID string) ([]catalog.Copy, error)
}

type Handler struct {
	Users Users
	Loans Loans
}

func New(users Users, loans Loans) *Handler { return &Handler{Users: users, Loans: loans} }

func (h *Handler) Register(mux *http.ServeMux, requireAuth middlewares.Middleware) {
	mux.Handle("GET /api/profile", requireAuth(http.HandlerFunc(h.Get)))
}

type userView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type profileView struct {
	User   userView       `json:"user"`
	Copies []catalog.Copy `json:"copies"`
}

// GET /api/profile shows the caller and the copies they hold.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middlewares.UserIDFrom(r.Context())
	if !ok {
		apperr.Unauthorized(w, r)
		return
	}
	u, err := h.Users.FindByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			apperr.NotFound(w, r, "user not found")
			return
		}
		apperr.HandleDBError(w, r, err, "Profile lookup failed")
		return
	}
	copies, err := h.Loans.BorrowedBy(r.Context(), userID)
	if err != nil {
		apperr.HandleDBError(w, r, err, "Profile lookup failed")
		return
	}
	if copies == nil {
		copies = []catalog.Copy{}
	}

	httpx.WriteJSON(w, http.StatusOK, profileView{
		User: userView{
			ID:        u.ID,
			Username:  u.Username,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		},
		Copies: copies,
	})
}
