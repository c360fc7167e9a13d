package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BradenHooton/bastion/internal/models"
	pkgauth "github.com/BradenHooton/bastion/pkg/auth"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
)

// UserRepository defines the credential-store lookup the login flow consumes
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// LockoutTracker defines the brute-force protection operations the login
// flow invokes around credential verification
type LockoutTracker interface {
	CheckLockout(ctx context.Context, identifier, origin string) models.LockoutDecision
	RecordFailure(ctx context.Context, identifier, origin string) models.LockoutDecision
	ClearAttempts(ctx context.Context, identifier, origin string)
}

// AuthService orchestrates the login flow: pre-flight lockout check,
// credential verification, then recording or clearing attempts based on the
// outcome
type AuthService struct {
	repo        UserRepository
	lockouts    LockoutTracker
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, lockouts LockoutTracker, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		repo:        repo,
		lockouts:    lockouts,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Login authenticates a user. The returned decision is always populated so
// the handler can shape the client-facing error (remaining attempts, lockout
// expiry); this service never formats user-facing text.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress string) (*UserResponse, models.LockoutDecision, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	// Refuse before touching the credential store; a locked key gets no
	// password verification at all.
	decision := s.lockouts.CheckLockout(ctx, email, ipAddress)
	if decision.Locked {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_blocked",
			IPAddress:     ipAddress,
			FailureReason: "locked_out",
			Success:       false,
		})
		return nil, decision, models.ErrAccountLocked
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Unknown identifiers are tracked like known ones, so probing
			// for valid accounts burns the same attempt budget.
			decision = s.lockouts.RecordFailure(ctx, email, ipAddress)
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     ipAddress,
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, decision, s.failureError(decision)
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, decision, models.ErrInternalServer
	}

	if user.Status != models.StatusActive {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ipAddress,
			FailureReason: "account_disabled",
			Success:       false,
		})
		return nil, decision, models.ErrAccountDisabled
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		decision = s.lockouts.RecordFailure(ctx, email, ipAddress)
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ipAddress,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, decision, s.failureError(decision)
	}

	s.lockouts.ClearAttempts(ctx, email, ipAddress)
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		Success:   true,
	})

	return &UserResponse{ID: user.ID, Email: user.Email, Name: user.Name},
		models.LockoutDecision{RemainingAttempts: decision.RemainingAttempts},
		nil
}

// failureError distinguishes "wrong credentials" from "that strike locked
// you out" for the handler's status-code mapping
func (s *AuthService) failureError(decision models.LockoutDecision) error {
	if decision.Locked {
		return models.ErrAccountLocked
	}
	return models.ErrUnauthorized
}
