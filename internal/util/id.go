package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random 32-char hex id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
