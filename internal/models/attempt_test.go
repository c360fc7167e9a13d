package models_test

import (
	"testing"

	"github.com/BradenHooton/bastion/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDeriveAttemptKey_CanonicalizesIdentifier(t *testing.T) {
	key := models.DeriveAttemptKey("  User@Example.COM ", "192.0.2.1")

	assert.Equal(t, "user@example.com", key.Identifier)
	assert.Equal(t, "192.0.2.1", key.Origin)
	assert.Equal(t, "user@example.com|192.0.2.1", key.String())
}

func TestDeriveAttemptKey_SameInputsSameKey(t *testing.T) {
	a := models.DeriveAttemptKey("USER@example.com", "192.0.2.1")
	b := models.DeriveAttemptKey("user@EXAMPLE.com", "192.0.2.1")

	assert.Equal(t, a, b)
}

func TestDeriveAttemptKey_MalformedInputsMapToUnknown(t *testing.T) {
	key := models.DeriveAttemptKey("", "   ")

	assert.Equal(t, "unknown", key.Identifier)
	assert.Equal(t, "unknown", key.Origin)
}
