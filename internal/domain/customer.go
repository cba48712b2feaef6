package domain

import (
	"strings"

	"github.com/google/uuid"
)

type Customer struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// NormalizeEmail is the form used for uniqueness checks and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
