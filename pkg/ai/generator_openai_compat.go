package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultTemperature   = 0.7
	maxErrorBody         = 64 << 10
)

// OpenAICompatGenerator calls any OpenAI-compatible /chat/completions endpoint.
type OpenAICompatGenerator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewOpenAICompatGenerator builds an OpenAI-compatible TextGenerator.
// baseURL should include the /v1 prefix, e.g. "http://localhost:8000/v1";
// empty means the public OpenAI endpoint. A non-positive timeout disables
// the client-side bound.
func NewOpenAICompatGenerator(baseURL, apiKey, model string, timeout time.Duration) *OpenAICompatGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if timeout < 0 {
		timeout = 0
	}
	return &OpenAICompatGenerator{
		baseURL:     baseURL,
		apiKey:      strings.TrimSpace(apiKey),
		model:       strings.TrimSpace(model),
		temperature: defaultTemperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GenerateText implements TextGenerator using the OpenAI chat completions API.
func (g *OpenAICompatGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if g.model == "" {
		return "", fmt.Errorf("openai-compat generation model required")
	}
	messages := make([]oaiMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, oaiMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, oaiMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(oaiChatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai-compat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errResp oaiErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&errResp); err == nil {
			apiErr.Message = errResp.Error.Message
			apiErr.Type = errResp.Error.Type
			if apiErr.Type == "" {
				apiErr.Type = errResp.Error.Code
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return "", apiErr
	}

	var chatResp oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("openai-compat decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai-compat api")
	}
	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
