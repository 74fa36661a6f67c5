package event

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Sentinel errors for event construction.
var (
	// ErrEmptyType indicates New was called with an empty event type.
	ErrEmptyType = errors.New("event type cannot be empty")

	// ErrInvalidID indicates an event ID is not a recognized spelling.
	ErrInvalidID = errors.New("invalid event ID")
)

// sortableIDLen is the length of the canonical 26-character sortable form
// (Crockford base32, as produced by ULID generators).
const sortableIDLen = 26

// crockford is the Crockford base32 alphabet accepted in sortable IDs.
// I, L, O, and U are excluded by the encoding.
const crockford = "0123456789abcdefghjkmnpqrstvwxyz"

// NormalizeID converts an event ID to its canonical textual form.
//
// Accepted spellings:
//   - 26-character sortable ID (Crockford base32): lowercased
//   - 36-character hyphenated UUID: lowercased, canonical hyphenation
//   - 32-character bare hexadecimal UUID: rewritten as lowercase hyphenated
//
// Two events whose IDs normalize to the same string are the same event.
func NormalizeID(id string) (string, error) {
	s := strings.TrimSpace(id)

	switch len(s) {
	case sortableIDLen:
		lower := strings.ToLower(s)
		for _, r := range lower {
			if !strings.ContainsRune(crockford, r) {
				return "", fmt.Errorf("%w: %q is not a sortable ID", ErrInvalidID, id)
			}
		}
		return lower, nil

	case 36, 32:
		u, err := uuid.Parse(s)
		if err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidID, id, err)
		}
		return u.String(), nil

	default:
		return "", fmt.Errorf("%w: %q has unsupported length %d", ErrInvalidID, id, len(s))
	}
}
