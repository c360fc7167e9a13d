package models

import "time"

// User is the slice of the credential store this service consumes: enough to
// look an account up by email and verify a password against its hash.
type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// User status values
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)
