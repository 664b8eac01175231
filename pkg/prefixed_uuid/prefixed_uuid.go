// Package prefixed_uuid generates UUIDs tagged with a readable prefix, such
// as "session-1b4e28ba-2fa1-11d2-883f-0016d3cca427".
package prefixed_uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PrefixedUUID represents a UUID with a prefix string.
type PrefixedUUID struct {
	Prefix string
	UUID   uuid.UUID
}

// New creates a new PrefixedUUID with the given prefix and a generated UUID.
func New(prefix string) PrefixedUUID {
	return PrefixedUUID{
		Prefix: prefix,
		UUID:   uuid.New(),
	}
}

// FromString parses a prefixed UUID in either the "prefix-uuid" or the
// compact form.
func FromString(s string) (PrefixedUUID, error) {
	idx := strings.Index(s, "-")
	if idx <= 0 {
		return PrefixedUUID{}, fmt.Errorf("invalid prefixed UUID format: %s", s)
	}

	parsed, err := uuid.Parse(s[idx+1:])
	if err != nil {
		return PrefixedUUID{}, fmt.Errorf("invalid UUID: %w", err)
	}
	return PrefixedUUID{Prefix: s[:idx], UUID: parsed}, nil
}

// String returns the prefixed UUID in the format "prefix-uuid".
func (p PrefixedUUID) String() string {
	return p.Prefix + "-" + p.UUID.String()
}

// Compact returns "prefix-<32 hex digits>", the UUID without its dashes.
// It fits size-limited fields such as chat keyboard callback data.
func (p PrefixedUUID) Compact() string {
	return p.Prefix + "-" + strings.ReplaceAll(p.UUID.String(), "-", "")
}

// HasPrefix reports whether s is an id carrying prefix.
func HasPrefix(s, prefix string) bool {
	return prefix != "" && len(s) > len(prefix)+1 && strings.HasPrefix(s, prefix+"-")
}
