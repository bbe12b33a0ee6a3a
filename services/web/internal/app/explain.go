package app

import (
	"context"
	"errors"
	"strings"

	"quoteshare/internal/util"
	"quoteshare/pkg/ai"
)

const (
	DefaultExplanationPrompt = "请为这段语录写一段简洁的解释，并说明其含义和适用场景。"
	explanationSystemPrompt  = "You are a helpful assistant who explains quotes clearly and concisely in Chinese."
)

// GenerateExplanation asks the configured model to explain content. A blank
// prompt falls back to DefaultExplanationPrompt. Single attempt, no retries.
func (a *App) GenerateExplanation(ctx context.Context, content, prompt string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrInvalidInput.WithMessage("Content is required to generate an explanation.")
	}
	if a.generator == nil {
		return "", ErrMissingCredential
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = DefaultExplanationPrompt
	}
	text, err := a.generator.GenerateText(ctx, explanationSystemPrompt, prompt+"\n\n语录："+content)
	if err == nil {
		return strings.TrimSpace(text), nil
	}

	logger := util.LoggerFromContext(ctx)
	var apiErr *ai.APIError
	switch {
	case errors.Is(err, ai.ErrAuthentication):
		logger.Warn("explanation rejected credentials", "err", err)
		return "", ErrMissingCredential
	case errors.As(err, &apiErr):
		logger.Warn("explanation upstream error", "status", apiErr.Status, "err", err)
		return "", ErrUpstream
	default:
		logger.Error("explanation failed", "err", err)
		return "", ErrExplanationFailed
	}
}
