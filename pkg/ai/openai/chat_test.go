package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/ai"
)

type answer struct {
	Answer string `json:"answer"`
}

func newTestServer(t *testing.T, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, seen)

		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateCompletionWithFormat(t *testing.T) {
	var seen map[string]any
	srv := newTestServer(t, `{"answer":"ok"}`, &seen)

	client := NewExtractionClient(NewExtractionClientParams{
		Model:   "test-model",
		ChatURL: srv.URL + "/",
		ChatKey: "test",
	})

	var out answer
	err := client.GenerateCompletionWithFormat(
		context.Background(), "answer", "a single answer", "question", &out,
		ai.WithSystemPrompts("be brief"),
	)
	if err != nil {
		t.Fatalf("GenerateCompletionWithFormat() error = %v", err)
	}
	if out.Answer != "ok" {
		t.Fatalf("answer = %q", out.Answer)
	}

	format, _ := seen["response_format"].(map[string]any)
	if format["type"] != "json_schema" {
		t.Fatalf("response_format = %v", seen["response_format"])
	}
	msgs, _ := seen["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user message, got %v", msgs)
	}

	m := client.GetMetrics()
	if m.Requests != 1 || m.TotalTokens != 15 {
		t.Fatalf("metrics = %+v", m)
	}
	client.ResetMetrics()
	if client.GetMetrics().Requests != 0 {
		t.Fatal("metrics not reset")
	}
}

func TestGenerateCompletionEmptyReply(t *testing.T) {
	var seen map[string]any
	srv := newTestServer(t, "", &seen)

	client := NewExtractionClient(NewExtractionClientParams{Model: "m", ChatURL: srv.URL + "/", ChatKey: "k"})
	if _, err := client.GenerateCompletion(context.Background(), "hello"); err == nil {
		t.Fatal("expected an error for an empty reply")
	}
}
