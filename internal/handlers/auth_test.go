package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/bastion/internal/handlers"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/BradenHooton/bastion/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAuthService struct {
	user     *services.UserResponse
	decision models.LockoutDecision
	err      error
	gotIP    string
}

func (m *mockAuthService) Login(ctx context.Context, email, password, ipAddress string) (*services.UserResponse, models.LockoutDecision, error) {
	m.gotIP = ipAddress
	return m.user, m.decision, m.err
}

func postLogin(t *testing.T, handler *handlers.AuthHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.10:54321"
	rec := httptest.NewRecorder()
	handler.Login(rec, req)
	return rec
}

func TestAuthHandlerLogin_Success(t *testing.T) {
	service := &mockAuthService{
		user:     &services.UserResponse{ID: "user-1", Email: "user@example.com", Name: "Test User"},
		decision: models.LockoutDecision{RemainingAttempts: 5},
	}
	handler := handlers.NewAuthHandler(service, nil)

	rec := postLogin(t, handler, `{"email":"user@example.com","password":"hunter2hunter2"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "203.0.113.10", service.gotIP)

	var resp handlers.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user-1", resp.User.ID)
}

func TestAuthHandlerLogin_InvalidCredentials(t *testing.T) {
	service := &mockAuthService{
		decision: models.LockoutDecision{RemainingAttempts: 3},
		err:      models.ErrUnauthorized,
	}
	handler := handlers.NewAuthHandler(service, nil)

	rec := postLogin(t, handler, `{"email":"user@example.com","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_credentials", resp["error"])
	assert.Equal(t, float64(3), resp["remaining_attempts"])
}

func TestAuthHandlerLogin_LockedReturns429WithRetryAfter(t *testing.T) {
	until := time.Now().Add(5 * time.Minute)
	service := &mockAuthService{
		decision: models.LockoutDecision{Locked: true, LockedUntil: &until},
		err:      models.ErrAccountLocked,
	}
	handler := handlers.NewAuthHandler(service, nil)

	rec := postLogin(t, handler, `{"email":"user@example.com","password":"wrong"}`)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "account_locked", resp["error"])
	assert.NotEmpty(t, resp["locked_until"])
}

func TestAuthHandlerLogin_DisabledAccountLooksLikeBadCredentials(t *testing.T) {
	service := &mockAuthService{
		decision: models.LockoutDecision{RemainingAttempts: 5},
		err:      models.ErrAccountDisabled,
	}
	handler := handlers.NewAuthHandler(service, nil)

	rec := postLogin(t, handler, `{"email":"user@example.com","password":"hunter2hunter2"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_credentials", resp["error"])
}

func TestAuthHandlerLogin_RejectsMalformedBody(t *testing.T) {
	handler := handlers.NewAuthHandler(&mockAuthService{}, nil)

	rec := postLogin(t, handler, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandlerLogin_RejectsMissingFields(t *testing.T) {
	handler := handlers.NewAuthHandler(&mockAuthService{}, nil)

	rec := postLogin(t, handler, `{"email":"not-an-email","password":""}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
