package catalog

import (
	"net/http"
	"strconv"

	"github.com/5w1tchy/library-api/internal/api/httpx"
	"github.com/5w1tchy/library-api/internal/api/middlewares"
	"github.com/5w1tchy/library-api/internal/validate"
)

type suggestion struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	SelectedText string `json:"selected_text"`
}

type autocompleteResponse struct {
	Results    []suggestion `json:"results"`
	Pagination struct {
		More bool `json:"more"`
	} `json:"pagination"`
}

// GET /book-autocomplete?q=&page=
// Guests always get an empty result set.
func (h *Handler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	resp := autocompleteResponse{Results: []suggestion{}}
	if _, ok := middlewares.UserIDFrom(r.Context()); !ok {
		httpx.WriteJSON(w, http.StatusOK, resp)
		return
	}

	page, _ := validate.ClampPage(r.URL.Query().Get("page"), "", autocompletePageSize, autocompletePageSize)
	books, more, err := h.Store.Autocomplete(r.Context(), r.URL.Query().Get("q"), page, autocompletePageSize)
	if err != nil {
		h.fail(w, r, "book", err)
		return
	}
	for _, b := range books {
		id := strconv.FormatInt(b.ID, 10)
		resp.Results = append(resp.Results, suggestion{ID: id, Text: b.Title, SelectedText: b.Title})
	}
	resp.Pagination.More = more
	httpx.WriteJSON(w, http.StatusOK, resp)
}
