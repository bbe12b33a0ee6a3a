package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random, URL-safe hex ID.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
