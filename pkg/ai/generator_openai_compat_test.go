package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAICompatGeneratorRoundTrip(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  Drink plenty of water.  "}},
			},
		})
	}))
	defer srv.Close()

	g := NewOpenAICompatGenerator(srv.URL, "key-123", "test-model", 5*time.Second)
	text, err := g.GenerateText(context.Background(), "be helpful", "any tips?")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "Drink plenty of water." {
		t.Fatalf("text = %q", text)
	}
	if gotAuth != "Bearer key-123" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotReq.Model != "test-model" || len(gotReq.Messages) != 2 {
		t.Fatalf("request = %+v", gotReq)
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Fatalf("message roles = %+v", gotReq.Messages)
	}
}

func TestOpenAICompatGeneratorAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limited", "type": "rate_limit"},
		})
	}))
	defer srv.Close()

	g := NewOpenAICompatGenerator(srv.URL, "", "test-model", 5*time.Second)
	if _, err := g.GenerateText(context.Background(), "", "hello"); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestOpenAICompatGeneratorRequiresModel(t *testing.T) {
	g := NewOpenAICompatGenerator("http://localhost:9", "", "", time.Second)
	if _, err := g.GenerateText(context.Background(), "", "hello"); err == nil {
		t.Fatal("expected error for missing model")
	}
}
