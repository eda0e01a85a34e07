package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
)

func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestListHandler(t *testing.T) {
	w := httptest.NewRecorder()
	NewList().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/games", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"status":"OK","data":[{"gameId":1,"gameName":"Teen-Pati 20-20"},{"gameId":2,"gameName":"Poker"}]}`,
		w.Body.String())
}

func TestReadHandler(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		expectedStatus int
		expectedBody   string
	}{
		{name: "есть в каталоге", id: "2", expectedStatus: http.StatusOK, expectedBody: `"gameName":"Poker"`},
		{name: "нет в каталоге", id: "42", expectedStatus: http.StatusNotFound, expectedBody: `"error":"game not found"`},
		{name: "не число", id: "abc", expectedStatus: http.StatusBadRequest, expectedBody: `"error":"failed to decode id from url"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewRead().ServeHTTP(w, withID(httptest.NewRequest(http.MethodGet, "/api/games/"+tt.id, nil), tt.id))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
		})
	}
}
