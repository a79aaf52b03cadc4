package validation

import (
	"github.com/google/uuid"

	"github.com/cypherlabdev/bookshop-service/internal/models"
)

// IsUUIDv4 accepts only the canonical 36 character form of a version 4,
// RFC 4122 variant identifier.
func IsUUIDv4(s string) bool {
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.Version() == 4 && id.Variant() == uuid.RFC4122
}

// CheckID rejects a malformed path identifier
func CheckID(id, message, parameter string) error {
	if !IsUUIDv4(id) {
		return models.InvalidInput(message, models.Parameter(parameter))
	}
	return nil
}

// NewID generates a record identifier
func NewID() string {
	return uuid.NewString()
}
