package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
	"github.com/BradenHooton/bastion/internal/services"
	pkghttp "github.com/BradenHooton/bastion/pkg/http"
)

// AuthServiceInterface defines the login flow this handler fronts
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, ipAddress string) (*services.UserResponse, models.LockoutDecision, error)
}

// AuthHandler handles authentication-related HTTP requests. It owns the
// translation of lockout decisions into user-facing status codes and text;
// the core services never format messages.
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{service: service, ipConfig: ipConfig}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a successful login
type LoginResponse struct {
	User *services.UserResponse `json:"user"`
}

// loginFailureResponse carries the attempt budget alongside the error so
// clients can warn the user before a lockout hits
type loginFailureResponse struct {
	Error             string     `json:"error"`
	Message           string     `json:"message"`
	RemainingAttempts int        `json:"remaining_attempts"`
	LockedUntil       *time.Time `json:"locked_until,omitempty"`
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}

	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	user, decision, err := h.service.Login(r.Context(), req.Email, req.Password, ipAddress)
	if err != nil {
		h.writeLoginFailure(w, decision, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(LoginResponse{User: user})
}

// writeLoginFailure maps service errors to status codes without leaking
// whether the account exists
func (h *AuthHandler) writeLoginFailure(w http.ResponseWriter, decision models.LockoutDecision, err error) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case errors.Is(err, models.ErrAccountLocked):
		if decision.LockedUntil != nil {
			retryAfter := int(time.Until(*decision.LockedUntil).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		}
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(loginFailureResponse{
			Error:       "account_locked",
			Message:     "Too many failed attempts. Try again later.",
			LockedUntil: decision.LockedUntil,
		})
	case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrAccountDisabled):
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(loginFailureResponse{
			Error:             "invalid_credentials",
			Message:           "Invalid email or password.",
			RemainingAttempts: decision.RemainingAttempts,
		})
	default:
		pkghttp.WriteInternalError(w, "something went wrong")
	}
}
