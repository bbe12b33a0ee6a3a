package ai

import (
	"context"
	"errors"
	"fmt"
)

// TextGenerator generates text from a system prompt and user prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ErrAuthentication reports that the provider rejected the configured credential.
var ErrAuthentication = errors.New("ai provider rejected credentials")

// APIError is an error reported by the provider over HTTP.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ai api error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("ai api error (%d)", e.Status)
}

// Is matches ErrAuthentication for 401 responses only.
func (e *APIError) Is(target error) bool {
	return target == ErrAuthentication && e.Status == 401
}
