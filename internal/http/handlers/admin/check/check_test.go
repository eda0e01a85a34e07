package check

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/predictor-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
)

func TestCheckHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/check", nil)
	req = req.WithContext(middlewarectx.WithIdentity(req.Context(), models.Identity{ID: "kp_admin", Email: "admin@example.com"}))
	w := httptest.NewRecorder()

	New().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"OK","data":{"isAdmin":true,"email":"admin@example.com"}}`, w.Body.String())

	w = httptest.NewRecorder()
	New().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/check", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
