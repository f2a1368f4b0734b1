package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/5w1tchy/library-api/internal/api/middlewares"
	"github.com/5w1tchy/library-api/internal/store/catalog"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type fakeStore struct {
	books     []catalog.Book
	libraries []catalog.Library
	copies    []catalog.Copy
	covers    map[int64]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		libraries: []catalog.Library{{ID: 1, Name: "Central", Slug: "central"}},
		covers:    map[int64]string{},
	}
}

func (f *fakeStore) Autocomplete(_ context.Context, q string, page, limit int) ([]catalog.Book, bool, error) {
	var hits []catalog.Book
	for _, b := range f.books {
		if strings.Contains(strings.ToLower(b.Title), strings.ToLower(q)) {
			hits = append(hits, b)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Title < hits[j].Title })
	start := (page - 1) * limit
	if start >= len(hits) {
		return nil, false, nil
	}
	hits = hits[start:]
	if len(hits) > limit {
		return hits[:limit], true, nil
	}
	return hits, false, nil
}

func (f *fakeStore) Libraries(context.Context) ([]catalog.Library, error) { return f.libraries, nil }

func (f *fakeStore) LibraryBySlug(_ context.Context, slug string) (catalog.Library, error) {
	for _, l := range f.libraries {
		if l.Slug == slug {
			return l, nil
		}
	}
	return catalog.Library{}, catalog.ErrNotFound
}

func (f *fakeStore) BooksInLibrary(_ context.Context, libraryID int64, page, size int) (catalog.BooksPage, error) {
	out := catalog.BooksPage{Books: []catalog.BookWithCopies{}}
	var all []catalog.BookWithCopies
	for _, b := range f.books {
		var cs []catalog.Copy
		for _, c := range f.copies {
			if c.BookID == b.ID && c.LibraryID == libraryID {
				cs = append(cs, c)
			}
		}
		if len(cs) > 0 {
			all = append(all, catalog.BookWithCopies{Book: b, Copies: cs})
		}
	}
	out.Count = len(all)
	start := (page - 1) * size
	if start < len(all) {
		end := min(start+size, len(all))
		out.Books = all[start:end]
	}
	return out, nil
}

func (f *fakeStore) GetBook(_ context.Context, id int64) (catalog.Book, error) {
	for _, b := range f.books {
		if b.ID == id {
			if k, ok := f.covers[id]; ok {
				b.CoverKey = &k
			}
			return b, nil
		}
	}
	return catalog.Book{}, catalog.ErrNotFound
}

func (f *fakeStore) CreateBook(_ context.Context, nb catalog.NewBook) (catalog.Book, error) {
	b := catalog.Book{ID: int64(len(f.books) + 1), Author: nb.Author, Title: nb.Title, Subtitle: nb.Subtitle, PublicationDate: nb.PublicationDate}
	f.books = append(f.books, b)
	return b, nil
}

func (f *fakeStore) CreateLibrary(_ context.Context, name, slug string) (catalog.Library, error) {
	if slug == "" {
		slug = catalog.Slugify(name)
	}
	if _, err := f.LibraryBySlug(context.Background(), slug); err == nil {
		return catalog.Library{}, catalog.ErrConflict
	}
	l := catalog.Library{ID: int64(len(f.libraries) + 1), Name: name, Slug: slug}
	f.libraries = append(f.libraries, l)
	return l, nil
}

func (f *fakeStore) AddCopy(_ context.Context, slug string, bookID int64) (catalog.Copy, error) {
	lib, err := f.LibraryBySlug(context.Background(), slug)
	if err != nil {
		return catalog.Copy{}, err
	}
	if _, err := f.GetBook(context.Background(), bookID); err != nil {
		return catalog.Copy{}, err
	}
	c := catalog.Copy{ID: int64(len(f.copies) + 1), BookID: bookID, LibraryID: lib.ID}
	f.copies = append(f.copies, c)
	return c, nil
}

func (f *fakeStore) SetCoverKey(_ context.Context, id int64, key string) error {
	if _, err := f.GetBook(context.Background(), id); err != nil {
		return err
	}
	f.covers[id] = key
	return nil
}

type fakeCovers struct {
	deleted []string
	fail    bool
}

func (c *fakeCovers) PresignUpload(_ context.Context, key, _ string) (string, error) {
	if c.fail {
		return "", errors.New("presign failed")
	}
	return "https://s3.test/put/" + key, nil
}

func (c *fakeCovers) PresignDownload(_ context.Context, key string) (string, error) {
	return "https://s3.test/get/" + key, nil
}

func (c *fakeCovers) DeleteObject(_ context.Context, key string) error {
	c.deleted = append(c.deleted, key)
	return nil
}

func (c *fakeCovers) Expires() time.Duration { return 15 * time.Minute }

// withRole stands in for the auth middlewares: X-Test-Role sets the caller.
func withRole(allowed ...string) middlewares.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := r.Header.Get("X-Test-Role")
			if role != "" {
				r = r.WithContext(middlewares.WithPrincipal(r.Context(), middlewares.Principal{ID: "u1", Role: role}))
			}
			if len(allowed) > 0 {
				ok := false
				for _, a := range allowed {
					ok = ok || a == role
				}
				if !ok {
					w.WriteHeader(http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newServer(s Store, c Covers) *http.ServeMux {
	mux := http.NewServeMux()
	New(s, c).Register(mux, Routes{Optional: withRole(), Librarian: withRole("librarian", "admin")})
	return mux
}

func do(t *testing.T, mux http.Handler, method, target, role, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var m map[string]any
	if strings.Contains(rec.Header().Get("Content-Type"), "json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	}
	return rec, m
}

func seedBooks(f *fakeStore, titles ...string) {
	for _, title := range titles {
		f.books = append(f.books, catalog.Book{ID: int64(len(f.books) + 1), Title: title, Author: "A", PublicationDate: catalog.NewDate(time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC))})
	}
}

func TestAutocomplete_Guest(t *testing.T) {
	f := newFakeStore()
	seedBooks(f, "Dune")
	rec, body := do(t, newServer(f, nil), http.MethodGet, "/book-autocomplete?q=dune", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["results"])
	assert.Equal(t, map[string]any{"more": false}, body["pagination"])
}

func TestAutocomplete_Authenticated(t *testing.T) {
	f := newFakeStore()
	seedBooks(f, "Dune", "Dune Messiah", "Emma")
	mux := newServer(f, nil)

	rec, body := do(t, mux, http.MethodGet, "/book-autocomplete?q=DUNE", "member", "")
	require.Equal(t, http.StatusOK, rec.Code)
	results := body["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.Equal(t, "1", first["id"])
	assert.Equal(t, "Dune", first["text"])
	assert.Equal(t, "Dune", first["selected_text"])
	assert.Equal(t, false, body["pagination"].(map[string]any)["more"])
}

func TestAutocomplete_Pages(t *testing.T) {
	f := newFakeStore()
	for i := 0; i < 12; i++ {
		seedBooks(f, "Book "+string(rune('a'+i)))
	}
	mux := newServer(f, nil)

	_, body := do(t, mux, http.MethodGet, "/book-autocomplete", "member", "")
	assert.Len(t, body["results"], 10)
	assert.Equal(t, true, body["pagination"].(map[string]any)["more"])

	_, body = do(t, mux, http.MethodGet, "/book-autocomplete?page=2", "member", "")
	assert.Len(t, body["results"], 2)
	assert.Equal(t, false, body["pagination"].(map[string]any)["more"])
}

func TestGetLibrary(t *testing.T) {
	f := newFakeStore()
	seedBooks(f, "Dune")
	_, err := f.AddCopy(context.Background(), "central", 1)
	require.NoError(t, err)
	mux := newServer(f, nil)

	rec, body := do(t, mux, http.MethodGet, "/api/libraries/central/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Central", body["name"])
	assert.Equal(t, "central", body["slug"])
	assert.Equal(t, "http://example.com/api/libraries/central/books/", body["books"])

	rec, body = do(t, mux, http.MethodGet, "/api/libraries/central/books/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])
	book := body["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "Dune", book["title"])
	assert.Equal(t, "2001-02-03", book["publication_date"])
	assert.Nil(t, book["cover_url"])
	cp := book["copies"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 1, cp["id"])
	assert.EqualValues(t, 1, cp["library"])
	assert.Nil(t, cp["user"])
	assert.Nil(t, cp["borrow_date"])

	rec, _ = do(t, mux, http.MethodGet, "/api/libraries/nowhere/", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListLibraries(t *testing.T) {
	rec, body := do(t, newServer(newFakeStore(), nil), http.MethodGet, "/api/libraries/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])
}

func TestLibraryBooks_Pagination(t *testing.T) {
	f := newFakeStore()
	seedBooks(f, "A1", "A2", "A3")
	for id := int64(1); id <= 3; id++ {
		_, err := f.AddCopy(context.Background(), "central", id)
		require.NoError(t, err)
	}
	mux := newServer(f, nil)

	_, body := do(t, mux, http.MethodGet, "/api/libraries/central/books/?page_size=2", "", "")
	assert.EqualValues(t, 3, body["count"])
	assert.Equal(t, "http://example.com/api/libraries/central/books/?page=2&page_size=2", body["next"])
	assert.Nil(t, body["previous"])

	_, body = do(t, mux, http.MethodGet, "/api/libraries/central/books/?page=2&page_size=2", "", "")
	assert.Nil(t, body["next"])
	assert.Equal(t, "http://example.com/api/libraries/central/books/?page_size=2", body["previous"])
	assert.Len(t, body["results"], 1)

	rec, _ := do(t, mux, http.MethodGet, "/api/libraries/central/books/?page=3&page_size=2", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLibraryBooks_HugePageIsOutOfRange(t *testing.T) {
	f := newFakeStore()
	seedBooks(f, "A1", "A2", "A3")
	for id := int64(1); id <= 3; id++ {
		_, err := f.AddCopy(context.Background(), "central", id)
		require.NoError(t, err)
	}
	mux := newServer(f, nil)

	for _, page := range []string{"4611686018427387905", "9223372036854775807"} {
		rec, body := do(t, mux, http.MethodGet, "/api/libraries/central/books/?page="+page+"&page_size=2", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, page)
		assert.Nil(t, body["next"], page)
	}
}

func TestLibrarianWrites(t *testing.T) {
	f := newFakeStore()
	mux := newServer(f, nil)

	rec, _ := do(t, mux, http.MethodPost, "/api/books", "member", `{"author":"F. Herbert","title":"Dune","publication_date":"1965-08-01"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := do(t, mux, http.MethodPost, "/api/books", "librarian", `{"author":"F. Herbert","title":"Dune","publication_date":"1965-08-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Dune", body["data"].(map[string]any)["title"])

	rec, _ = do(t, mux, http.MethodPost, "/api/books", "librarian", `{"author":"X","title":"Y","publication_date":"1965"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, body = do(t, mux, http.MethodPost, "/api/libraries", "admin", `{"name":"Bibliothèque Nord"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "bibliotheque-nord", body["data"].(map[string]any)["slug"])

	rec, _ = do(t, mux, http.MethodPost, "/api/libraries", "admin", `{"name":"Again","slug":"central"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, mux, http.MethodPost, "/api/libraries", "admin", `{"name":"Bad","slug":"Not A Slug"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, body = do(t, mux, http.MethodPost, "/api/libraries/central/copies", "librarian", `{"book_id":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, body["data"].(map[string]any)["user"])

	rec, _ = do(t, mux, http.MethodPost, "/api/libraries/central/copies", "librarian", `{"book_id":42}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, mux, http.MethodPost, "/api/libraries/nowhere/copies", "librarian", `{"book_id":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCover_StorageDisabled(t *testing.T) {
	f := newFakeStore()
	seedBooks(f, "Dune")
	rec, _ := do(t, newServer(f, nil), http.MethodPost, "/api/books/1/cover", "librarian", `{"content_type":"image/png"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCover_PresignAndRedirect(t *testing.T) {
	f := newFakeStore()
	seedBooks(f, "Dune")
	covers := &fakeCovers{}
	mux := newServer(f, covers)

	rec, _ := do(t, mux, http.MethodGet, "/api/books/1/cover", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, mux, http.MethodPost, "/api/books/1/cover", "librarian", `{"content_type":"image/gif"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, body := do(t, mux, http.MethodPost, "/api/books/1/cover", "librarian", `{"content_type":"image/png"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	key := data["cover_key"].(string)
	assert.True(t, strings.HasPrefix(key, "books/covers/1/"))
	assert.Equal(t, "https://s3.test/put/"+key, data["upload_url"])
	assert.EqualValues(t, 900, data["expires_in"])
	assert.Equal(t, key, f.covers[1])

	rec, _ = do(t, mux, http.MethodGet, "/api/books/1/cover", "", "")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://s3.test/get/"+key, rec.Header().Get("Location"))

	// replacing drops the old object
	rec, _ = do(t, mux, http.MethodPost, "/api/books/1/cover", "librarian", `{"content_type":"image/webp"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{key}, covers.deleted)

	rec, body = do(t, mux, http.MethodGet, "/api/books/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://s3.test/get/"+f.covers[1], body["data"].(map[string]any)["cover_url"])
}

func TestGetBook_NotFound(t *testing.T) {
	mux := newServer(newFakeStore(), nil)
	for _, path := range []string{"/api/books/7", "/api/books/x"} {
		rec, _ := do(t, mux, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}
