package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountDisabled = errors.New("account is disabled")
	ErrAccountLocked   = errors.New("account is temporarily locked")

	// ErrSchemaNotProvisioned indicates the lockout table has not been created
	// yet. Callers treat it as "no durable tier available this call" and must
	// not log it as an error.
	ErrSchemaNotProvisioned = errors.New("lockout schema not provisioned")
)
