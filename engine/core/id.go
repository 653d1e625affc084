package core

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

// ID is a K-sortable unique identifier used for generated records
// (audit entries, ingest runs). Catalog rows keep their integer keys.
type ID string

func (i ID) String() string {
	return string(i)
}

func (i ID) IsZero() bool {
	return i == ""
}

// NewID generates a new KSUID-backed ID.
func NewID() (ID, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return ID(id.String()), nil
}

// MustNewID generates a new ID and panics on failure.
func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

// ParseID validates that raw is a well-formed KSUID and returns it as an ID.
func ParseID(raw string) (ID, error) {
	if raw == "" {
		return "", fmt.Errorf("id cannot be empty")
	}
	parsed, err := ksuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid id %q: %w", raw, err)
	}
	return ID(parsed.String()), nil
}
