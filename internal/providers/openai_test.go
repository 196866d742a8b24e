package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/loomgate/loomgate/internal/chatmodel"
)

func TestOpenAIProviderChatParsesContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != "gpt-test" {
			t.Errorf("expected model gpt-test, got %v", body["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello there"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test", "key", srv.URL, "gpt-test")
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []chatmodel.Message{chatmodel.NewUser("hi")},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "hello there" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 15 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
}

func TestOpenAIProviderChatParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"","tool_calls":[{"id":"call-1","function":{"name":"lookup","arguments":"{\"q\":\"x\"}"}}]},"finish_reason":"tool_calls"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test", "key", srv.URL, "gpt-test")
	resp, err := p.Chat(context.Background(), ChatRequest{Messages: []chatmodel.Message{chatmodel.NewUser("hi")}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.FinishReason != "tool_calls" || len(resp.ToolCalls) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.ToolCalls[0].Name != "lookup" || resp.ToolCalls[0].Arguments["q"] != "x" {
		t.Fatalf("unexpected tool call %+v", resp.ToolCalls[0])
	}
}

func TestOpenAIProviderSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test", "key", srv.URL, "gpt-test")
	p.retryConfig = RetryConfig{MaxRetries: 0}
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []chatmodel.Message{chatmodel.NewUser("hi")}})
	if err == nil {
		t.Fatal("expected an error")
	}
	httpErr, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("expected *HTTPError, got %T", err)
	}
	if !httpErr.IsRateLimit() {
		t.Fatal("expected 429 to classify as rate-limit")
	}
}
