package lending

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/5w1tchy/library-api/internal/api/apperr"
	"github.com/5w1tchy/library-api/internal/api/middlewares"
	"github.com/5w1tchy/library-api/internal/store/catalog"
	storelending "github.com/5w1tchy/library-api/internal/store/lending"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fakeStore keeps copies in memory, keyed by id, holder user id in UserID.
type fakeStore struct {
	copies map[int64]*catalog.Copy
	names  map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		copies: map[int64]*catalog.Copy{1: {ID: 1, BookID: 10, LibraryID: 5}},
		names:  map[string]string{"u1": "ann", "u2": "bob"},
	}
}

func (f *fakeStore) Borrow(_ context.Context, id int64, userID string) (catalog.Copy, error) {
	c, ok := f.copies[id]
	if !ok {
		return catalog.Copy{}, storelending.ErrNotFound
	}
	if c.UserID != nil && *c.UserID != userID {
		return catalog.Copy{}, storelending.ErrAlreadyBorrowed
	}
	if c.UserID == nil {
		now := time.Now()
		uid, name := userID, f.names[userID]
		c.UserID, c.Username, c.BorrowDate = &uid, &name, &now
	}
	c.Resolve()
	return *c, nil
}

func (f *fakeStore) Return(_ context.Context, id int64) (catalog.Copy, error) {
	c, ok := f.copies[id]
	if !ok {
		return catalog.Copy{}, storelending.ErrNotFound
	}
	c.UserID, c.Username, c.BorrowDate = nil, nil, nil
	c.Resolve()
	return *c, nil
}

// asUser stands in for RequireAuth: X-Test-User names the caller.
func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Test-User")
		if id == "" {
			apperr.Unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(middlewares.WithPrincipal(r.Context(), middlewares.Principal{ID: id})))
	})
}

func newServer(s Store) *http.ServeMux {
	mux := http.NewServeMux()
	New(s).Register(mux, asUser)
	return mux
}

type envelope struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func post(t *testing.T, mux http.Handler, path, user string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var env envelope
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestBorrowAndReturn(t *testing.T) {
	store := newFakeStore()
	mux := newServer(store)

	rec, env := post(t, mux, "/api/copies/1/borrow", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, env.Message, "Book borrowed")
	assert.Equal(t, map[string]any{"username": "ann"}, env.Data["user"])
	assert.NotNil(t, env.Data["borrow_date"])
	assert.EqualValues(t, 5, env.Data["library"])

	// same user again is idempotent
	rec, _ = post(t, mux, "/api/copies/1/borrow", "u1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = post(t, mux, "/api/copies/1/borrow", "u2")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec, env = post(t, mux, "/api/copies/1/return", "u2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, env.Message, "Book returned")
	assert.Nil(t, env.Data["user"])
	assert.Nil(t, env.Data["borrow_date"])
	assert.Nil(t, store.copies[1].UserID)
}

func TestNotFound(t *testing.T) {
	mux := newServer(newFakeStore())
	for _, path := range []string{
		"/api/copies/99/borrow",
		"/api/copies/99/return",
		"/api/copies/abc/borrow",
		"/api/copies/0/return",
	} {
		rec, _ := post(t, mux, path, "u1")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestRequiresAuth(t *testing.T) {
	mux := newServer(newFakeStore())
	rec, _ := post(t, mux, "/api/copies/1/borrow", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newServer(newFakeStore())
	req := httptest.NewRequest(http.MethodGet, "/api/copies/1/borrow", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
