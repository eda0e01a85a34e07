package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/predictor-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
	"github.com/magabrotheeeer/predictor-portal/internal/services/subscription"
)

type MockService struct{ mock.Mock }

func (m *MockService) Dashboard(ctx context.Context, id models.Identity) (*subscription.Dashboard, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Dashboard), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestDashboardHandler(t *testing.T) {
	jane := models.Identity{ID: "kp_1", Email: "jane@example.com", GivenName: "Jane", FamilyName: "Doe"}

	tests := []struct {
		name           string
		identity       *models.Identity
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   []string
	}{
		{
			name:     "новый пользователь без плана",
			identity: &jane,
			setupMock: func(m *MockService) {
				m.On("Dashboard", mock.Anything, jane).Return(&subscription.Dashboard{
					User:     &models.User{ID: "kp_1", Email: "jane@example.com", Name: "Jane Doe"},
					Decision: subscription.Decision{Reason: subscription.ReasonInactive},
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody: []string{
				`"entitled":false`, `"reason":"inactive"`, `"redirect":"/payment"`,
				`"name":"Jane Doe"`, `"planType":null`, `"gameName":"Teen-Pati 20-20"`,
			},
		},
		{
			name:     "действующий план",
			identity: &jane,
			setupMock: func(m *MockService) {
				m.On("Dashboard", mock.Anything, jane).Return(&subscription.Dashboard{
					User:     &models.User{ID: "kp_1", IsActive: true},
					Decision: subscription.Decision{Entitled: true},
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   []string{`"entitled":true`, `"isActive":true`},
		},
		{
			name:           "нет сессии",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   []string{`{"status":"Error","error":"unauthorized"}`},
		},
		{
			name:     "ошибка сервиса",
			identity: &jane,
			setupMock: func(m *MockService) {
				m.On("Dashboard", mock.Anything, jane).Return(nil, errors.New("db error")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   []string{`"error":"could not load dashboard"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockService)
			tt.setupMock(m)

			req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
			ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "req-id")
			if tt.identity != nil {
				ctx = middlewarectx.WithIdentity(ctx, *tt.identity)
			}
			w := httptest.NewRecorder()
			New(newNoopLogger(), m).ServeHTTP(w, req.WithContext(ctx))

			assert.Equal(t, tt.expectedStatus, w.Code)
			for _, s := range tt.expectedBody {
				assert.Contains(t, w.Body.String(), s)
			}
			assert.NotContains(t, w.Body.String(), `"redirect"`+":\"\"")
			m.AssertExpectations(t)
		})
	}
}
