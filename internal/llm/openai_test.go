package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/veritas/internal/model"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || !strings.HasSuffix(req.Messages[1].Content, "Bitcoin passed 100,000 dollars") {
			t.Errorf("expected statement at the end of the user prompt, got %+v", req.Messages)
		}

		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "chatcmpl-123",
			Model: req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

var bitcoin = model.Statement{ID: "s1", Text: "Bitcoin passed 100,000 dollars"}

func TestCapability_Verify(t *testing.T) {
	reply := "```json\n" + `{
		"is_true": true,
		"confidence": 0.8,
		"evidence": [
			{"source": "coindesk.com", "title": "BTC tops 100k", "content": "Bitcoin rose above $100,000.", "url": "https://www.coindesk.com/markets/btc"},
			{"source": "reuters.com", "title": "Crypto rally"}
		],
		"explanation": "Multiple outlets reported the move.",
		"methodology": "Compared market coverage."
	}` + "\n```"
	server := chatServer(t, reply)

	c, err := NewCapability(Config{Provider: "openai", APIKey: "test-key", BaseURL: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Failed to create capability: %v", err)
	}

	claim, err := c.Verify(context.Background(), bitcoin)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !claim.IsTrue || claim.Confidence != 0.8 {
		t.Errorf("unexpected verdict %+v", claim)
	}
	if len(claim.Evidence) != 2 {
		t.Fatalf("expected 2 evidence items, got %d", len(claim.Evidence))
	}
	if claim.Evidence[0].Source != "https://www.coindesk.com/markets/btc" || claim.Evidence[0].Snippet != "Bitcoin rose above $100,000." {
		t.Errorf("expected url and content to be preferred, got %+v", claim.Evidence[0])
	}
	if claim.Evidence[1].Source != "reuters.com" || claim.Evidence[1].Snippet != "Crypto rally" {
		t.Errorf("expected source and title fallback, got %+v", claim.Evidence[1])
	}
}

func TestCapability_FillsMissingText(t *testing.T) {
	server := chatServer(t, `{"is_true": false, "confidence": 0.6, "evidence": []}`)

	c, err := NewCapability(Config{Provider: "openai", APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("Failed to create capability: %v", err)
	}

	claim, err := c.Verify(context.Background(), bitcoin)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claim.Explanation == "" || claim.Methodology == "" {
		t.Errorf("expected filled explanation and methodology, got %+v", claim)
	}
}

func TestCapability_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "Rate limit exceeded", "type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	c, _ := NewCapability(Config{Provider: "openai", APIKey: "test-key", BaseURL: server.URL})
	if _, err := c.Verify(context.Background(), bitcoin); err == nil {
		t.Fatal("Expected error, got nil")
	}
}

func TestCapability_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c, _ := NewCapability(Config{Provider: "openai", APIKey: "test-key", BaseURL: server.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Verify(ctx, bitcoin); err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
}

func TestCapability_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			_, _ = w.Write([]byte(`{"data": [{"id": "gpt-4o-mini"}]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c, _ := NewCapability(Config{Provider: "openai", APIKey: "test-key", BaseURL: server.URL})
	if err := c.IsAvailable(context.Background()); err != nil {
		t.Errorf("Expected available, got %v", err)
	}
}

func TestNewCapability_RequiresKey(t *testing.T) {
	if _, err := NewCapability(Config{Provider: "openai"}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestParseAnswer_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no json", "I cannot verify this."},
		{"broken json", `{"is_true": true,`},
		{"missing confidence", `{"is_true": true}`},
		{"confidence above one", `{"is_true": true, "confidence": 1.7}`},
		{"negative confidence", `{"is_true": true, "confidence": -0.1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAnswer(tt.raw); !errors.Is(err, ErrBadAnswer) {
				t.Errorf("expected ErrBadAnswer, got %v", err)
			}
		})
	}
}

func TestParseAnswer_SurroundingText(t *testing.T) {
	claim, err := ParseAnswer("Here is my answer:\n{\"is_true\": false, \"confidence\": 0.3, \"evidence\": [{\"source\": \" \"}]}\nThanks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claim.IsTrue || claim.Confidence != 0.3 {
		t.Errorf("unexpected claim %+v", claim)
	}
	if len(claim.Evidence) != 0 {
		t.Errorf("expected blank sources to be dropped, got %+v", claim.Evidence)
	}
}
