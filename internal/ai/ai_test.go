package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/david/procurement-scout/internal/quota"
)

func TestOpenAIClient_Extract(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"content":"  Kenya \n"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "sk-test", "", 10)
	out, err := c.Extract(context.Background(), FieldPrompt("country"), "This project in Kenya improves water supply")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out != "Kenya" {
		t.Fatalf("out = %q", out)
	}
	if got.Model != "gpt-4o-mini" || got.Temperature != 0.7 {
		t.Fatalf("unexpected request defaults: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
	if n := len([]rune(got.Messages[1].Content)); n != 10 {
		t.Fatalf("input not truncated, %d runes", n)
	}
}

func TestOpenAIClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(srv.URL, "k", "", 0).Extract(context.Background(), "p", "x")
	if err == nil || !strings.Contains(err.Error(), "Rate limit reached") {
		t.Fatalf("expected provider message in error, got %v", err)
	}
}

func TestOllamaClient_ExtractSendsSystem(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"response":"Energy","done":true}`))
	}))
	defer srv.Close()

	out, err := NewOllamaClient(srv.URL, "", "", 0).Extract(context.Background(), "give sector", "solar plant")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out != "Energy" || got.System != "give sector" || got.Stream {
		t.Fatalf("out=%q req=%+v", out, got)
	}
}

type countingExtractor struct{ calls int }

func (c *countingExtractor) Extract(ctx context.Context, systemPrompt, rawText string) (string, error) {
	c.calls++
	return "ok", nil
}

func TestThrottled_QuotaExhausted(t *testing.T) {
	inner := &countingExtractor{}
	th := NewThrottled(inner, 0, quota.NewDailyQuota(2), quota.Jitter{})

	for i := 0; i < 2; i++ {
		if _, err := th.Extract(context.Background(), "p", "x"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	_, err := th.Extract(context.Background(), "p", "x")
	if !errors.Is(err, quota.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("inner called %d times, want 2", inner.calls)
	}
}

func TestThrottled_CancelledWaitKeepsQuota(t *testing.T) {
	inner := &countingExtractor{}
	th := NewThrottled(inner, 0.001, quota.NewDailyQuota(5), quota.Jitter{})

	if _, err := th.Extract(context.Background(), "p", "x"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := th.Extract(ctx, "p", "x"); err == nil {
		t.Fatal("expected the rate limit wait to fail on a cancelled context")
	}
	if got := th.Remaining(); got != 4 {
		t.Fatalf("Remaining = %d, want 4", got)
	}
	if inner.calls != 1 {
		t.Fatalf("inner called %d times, want 1", inner.calls)
	}
}

func TestHTMLToText(t *testing.T) {
	got := HTMLToText(`<div class="x"><h2>Project</h2>
		<p>Lending   <b>US$ 20m</b></p><script>evil()</script></div>`)
	if got != "Project Lending US$ 20m" {
		t.Fatalf("HTMLToText = %q", got)
	}
}
