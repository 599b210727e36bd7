package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCompleteSendsImagesAndParsesUsage(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"content":" {\"title\":\"hi\"} "}}],"usage":{"prompt_tokens":120,"completion_tokens":30}}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/", "key", nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.Complete(context.Background(), Request{
		Model:     "gpt-4o-mini",
		System:    "system",
		Prompt:    "describe",
		ImageURLs: []string{"http://img/1", "http://img/2"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != `{"title":"hi"}` {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if resp.Usage.PromptTokens != 120 || resp.Usage.CompletionTokens != 30 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}

	messages := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(messages))
	}
	parts := messages[1].(map[string]any)["content"].([]any)
	if len(parts) != 3 {
		t.Fatalf("expected text plus two images, got %d parts", len(parts))
	}
	image := parts[1].(map[string]any)["image_url"].(map[string]any)
	if image["detail"] != "low" {
		t.Fatalf("expected low detail, got %v", image["detail"])
	}
	if captured["max_tokens"].(float64) != defaultMaxTokens {
		t.Fatalf("expected default max tokens, got %v", captured["max_tokens"])
	}
}

func TestCompleteProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "", nil)
	_, err := client.Complete(context.Background(), Request{Model: "m", Prompt: "p"})
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if !perr.IsRateLimited() || perr.Message != "slow down" {
		t.Fatalf("unexpected provider error %+v", perr)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "", nil)
	if _, err := client.Complete(context.Background(), Request{Model: "m"}); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestSuppliedClientKeepsCallerTimeout(t *testing.T) {
	client, err := NewClient("http://model.test", "", &http.Client{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.client.Timeout != 0 {
		t.Fatalf("supplied client timeout was overridden: %s", client.client.Timeout)
	}
	defaulted, _ := NewClient("http://model.test", "", nil)
	if defaulted.client.Timeout != defaultTimeout {
		t.Fatalf("expected default timeout for nil client, got %s", defaulted.client.Timeout)
	}
}

func TestCompleteHonoursContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "", &http.Client{})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := client.Complete(ctx, Request{Model: "m", Prompt: "p"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
