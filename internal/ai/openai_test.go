package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"doccontrol/api/internal/logger"
)

func completionHandler(t *testing.T, content string, calls *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat["type"] != "json_object" {
			t.Errorf("expected json_object response format, got %v", req.ResponseFormat)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-test",
			"choices": []map[string]any{{
				"message":       map[string]any{"content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 11, "completion_tokens": 7},
		})
	}
}

func newTestOpenAI(t *testing.T, url string) *OpenAI {
	t.Helper()
	client, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: url, MaxRetries: 1}, logger.Nop())
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	return client
}

func TestOpenAIReviewTextDerivesFlags(t *testing.T) {
	var calls int32
	content := `{"corrected_text":"texto corrigido","spelling_errors":[{"original":"testo","corrected":"texto","position":0,"context":"testo"}],"clarity_suggestions":[{"original":"a","suggested":"b","reason":"c","position":1}],"has_spelling_errors":false,"has_clarity_suggestions":true}`
	srv := httptest.NewServer(completionHandler(t, content, &calls))
	defer srv.Close()

	out, err := newTestOpenAI(t, srv.URL).ReviewText(context.Background(), ReviewInput{Text: "testo", SpellingOnly: true})
	if err != nil {
		t.Fatalf("ReviewText() error = %v", err)
	}
	if !out.HasSpellingErrors {
		t.Fatal("expected spelling flag derived from the error list")
	}
	if out.HasClaritySuggestions || len(out.ClaritySuggestions) != 0 {
		t.Fatalf("expected clarity suppressed in spelling-only mode, got %+v", out.ClaritySuggestions)
	}
	if out.Meta.Source != SourceLive || out.Meta.Model != "gpt-test" || out.Meta.Usage.PromptTokens != 11 {
		t.Fatalf("unexpected meta %+v", out.Meta)
	}
}

func TestOpenAIRetriesServerErrors(t *testing.T) {
	var calls int32
	ok := completionHandler(t, `{"feedback_items":[],"approved":true}`, &calls)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&calls) == 0 {
			atomic.AddInt32(&calls, 1)
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		ok(w, r)
	}))
	defer srv.Close()

	out, err := newTestOpenAI(t, srv.URL).Analyze(context.Background(), AnalysisInput{Text: "x"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !out.Approved {
		t.Fatal("expected approved analysis")
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestOpenAIRejectsEmptyOutput(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(completionHandler(t, "  ", &calls))
	defer srv.Close()

	_, err := newTestOpenAI(t, srv.URL).DetectSafety(context.Background(), SafetyInput{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "empty output") {
		t.Fatalf("expected empty output error, got %v", err)
	}
}

func TestOpenAIDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	if _, err := newTestOpenAI(t, srv.URL).Analyze(context.Background(), AnalysisInput{Text: "x"}); err == nil {
		t.Fatal("expected unauthorized error")
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{}, logger.Nop()); err == nil {
		t.Fatal("expected missing key error")
	}
}
