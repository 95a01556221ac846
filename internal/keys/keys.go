// Package keys generates the unique keys push appends under.
package keys

import (
	"github.com/google/uuid"
)

// Generator produces unique keys that are valid path segments.
type Generator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 keys.
//
// UUIDv7 embeds a millisecond timestamp in the most significant bits and a
// monotonic counter below it, so keys from one process compare in creation
// order as strings. Children pushed under the same parent therefore read
// back in push order.
//
// UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new key, e.g. "01890a5d-ac96-774b-bcce-b302099a8057".
//
// Panics if the system random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Default is the generator used when none is configured.
var Default Generator = UUIDv7Generator{}
