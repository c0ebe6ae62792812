// Package id provides time-ordered identifiers for all entities.
package id

import "github.com/google/uuid"

// ID is the identifier type used across all entities.
type ID = uuid.UUID

// New generates a UUIDv7. The embedded timestamp keeps inserts roughly
// ordered, which suits B-tree primary keys.
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// Parse converts a string to an ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// Nil returns the zero-value ID.
func Nil() ID {
	return uuid.Nil
}

// IsNil checks whether id is the zero value.
func IsNil(id ID) bool {
	return id == uuid.Nil
}
