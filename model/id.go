package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a 32-character lowercase hex identifier
// (UUIDv4 with the dashes stripped).
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Now returns the current UTC time. Entities always carry UTC timestamps.
func Now() time.Time {
	return time.Now().UTC()
}
