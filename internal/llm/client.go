// Package llm talks to an OpenAI-compatible chat completions endpoint with
// image inputs.
package llm

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
)

const (
	defaultTimeout   = 20 * time.Second
	defaultMaxTokens = 600
	maxErrorBodySize = 4096
)

// ErrEmptyResponse is returned when the provider answered without any choices.
var ErrEmptyResponse = errors.New("llm: empty response")

// ProviderError is returned when the provider responds with a non-2xx status.
type ProviderError struct {
	StatusCode int
	Type       string
	Message    string
}

func (err *ProviderError) Error() string {
	if err.Type != "" {
		return fmt.Sprintf("llm: HTTP %d: %s: %s", err.StatusCode, err.Type, err.Message)
	}
	return fmt.Sprintf("llm: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsRateLimited reports whether the provider throttled the request.
func (err *ProviderError) IsRateLimited() bool {
	return err.StatusCode == http.StatusTooManyRequests
}

// Request describes a single vision completion.
type Request struct {
	Model     string
	System    string
	Prompt    string
	ImageURLs []string
	// Detail is the image detail hint ("low", "high", "auto").
	Detail    string
	MaxTokens int
}

// Usage carries token accounting reported by the provider.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// Response is the first choice returned by the provider.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Client issues chat completion requests.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient builds a client for baseURL (for example https://api.openai.com).
// A nil client gets a default timeout; a supplied client is used as is, so
// callers may leave Timeout zero and bound each call with its context.
func NewClient(baseURL, apiKey string, client *http.Client) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("llm base url required")
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: trimmed, apiKey: strings.TrimSpace(apiKey), client: client}, nil
}

// Complete sends req and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if c == nil {
		return nil, errors.New("llm client not initialised")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, errors.New("llm model required")
	}
	body, err := json.Marshal(buildWireRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send completion request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errorForStatus(resp)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	model := wire.Model
	if model == "" {
		model = req.Model
	}
	return &Response{
		Text:  strings.TrimSpace(wire.Choices[0].Message.Content),
		Model: model,
		Usage: Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
		},
	}, nil
}

func errorForStatus(resp *http.Response) error {
	buf, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	perr := &ProviderError{StatusCode: resp.StatusCode}
	var envelope struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(buf, &envelope) == nil && envelope.Error.Message != "" {
		perr.Type = envelope.Error.Type
		perr.Message = envelope.Error.Message
		return perr
	}
	perr.Message = strings.TrimSpace(string(buf))
	if perr.Message == "" {
		perr.Message = resp.Status
	}
	return perr
}

func buildWireRequest(req Request) wireRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	detail := strings.TrimSpace(req.Detail)
	if detail == "" {
		detail = "low"
	}
	parts := make([]wirePart, 0, len(req.ImageURLs)+1)
	parts = append(parts, wirePart{Type: "text", Text: req.Prompt})
	for _, u := range req.ImageURLs {
		parts = append(parts, wirePart{Type: "image_url", ImageURL: &wireImage{URL: u, Detail: detail}})
	}
	messages := make([]wireMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, wireMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, wireMessage{Role: "user", Content: parts})
	return wireRequest{Model: req.Model, Messages: messages, MaxTokens: maxTokens}
}

type wireRequest struct {
	Model     string        `json:"model"`
	Messages  []wireMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type wireMessage struct {
	Role string `json:"role"`
	// Content is either a string or a list of parts.
	Content any `json:"content"`
}

type wirePart struct {
	Type     string     `json:"type"`
	Text     string     `json:"text,omitempty"`
	ImageURL *wireImage `json:"image_url,omitempty"`
}

type wireImage struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type wireResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}
