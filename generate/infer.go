package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
)

// ErrInferenceUnavailable is returned when the inference server cannot
// produce a completion.
var ErrInferenceUnavailable = errors.New("inference service unavailable")

// Options controls a single completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
	// Timeout bounds the call on top of the caller's context. Zero means no
	// extra bound.
	Timeout time.Duration
}

// Completer produces a chat completion.
type Completer interface {
	Complete(ctx context.Context, messages []justcopy.ChatMessage, opts Options) (string, error)
}

// Gateway talks to a locally hosted OpenAI-compatible inference server.
type Gateway struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewGateway creates a gateway for the server at baseURL.
func NewGateway(baseURL, apiKey, model string) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{},
	}
}

// Model returns the generation model name.
func (g *Gateway) Model() string { return g.model }

type chatCompletionsRequest struct {
	Model       string                 `json:"model"`
	Messages    []justcopy.ChatMessage `json:"messages"`
	Temperature float64                `json:"temperature"`
	MaxTokens   int                    `json:"max_tokens"`
}

type chatCompletionsResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message justcopy.ChatMessage `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete sends messages to /v1/chat/completions and returns the first
// choice's content. Every failure wraps ErrInferenceUnavailable.
func (g *Gateway) Complete(ctx context.Context, messages []justcopy.ChatMessage, opts Options) (string, error) {
	if g.baseURL == "" {
		return "", fmt.Errorf("%w: no base URL configured", ErrInferenceUnavailable)
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	data, err := json.Marshal(chatCompletionsRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInferenceUnavailable, err)
	}
	g.setHeaders(httpReq)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInferenceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInferenceUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d: %s", ErrInferenceUnavailable, resp.StatusCode, clip(string(body), 200))
	}

	var result chatCompletionsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", ErrInferenceUnavailable, err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrInferenceUnavailable, result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrInferenceUnavailable)
	}

	return result.Choices[0].Message.Content, nil
}

// Health probes GET /health on the inference server.
func (g *Gateway) Health(ctx context.Context) error {
	if g.baseURL == "" {
		return fmt.Errorf("%w: no base URL configured", ErrInferenceUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInferenceUnavailable, err)
	}
	g.setHeaders(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInferenceUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrInferenceUnavailable, resp.StatusCode)
	}
	return nil
}

// setHeaders sets common headers for API requests.
func (g *Gateway) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
}
