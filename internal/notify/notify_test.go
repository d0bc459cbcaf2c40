package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNotify_SlackPayloadAndSignature(t *testing.T) {
	var body []byte
	var sig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		sig = r.Header.Get(signatureHeader)
	}))
	defer srv.Close()

	n := New(srv.URL, "s3cret")
	if err := n.Notify(context.Background(), "adb scraper failed"); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("bad payload %s: %v", body, err)
	}
	if payload["text"] != "adb scraper failed" {
		t.Fatalf("text = %q", payload["text"])
	}

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(body)
	if want := "sha256=" + hex.EncodeToString(mac.Sum(nil)); sig != want {
		t.Fatalf("signature = %q, want %q", sig, want)
	}
}

func TestNotifyAsync_RetriesThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	var slept []time.Duration
	n := New(srv.URL, "")
	n.Sleep = func(d time.Duration) { slept = append(slept, d) }

	n.NotifyAsync("hello")
	n.Wait()

	if atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("hits = %d, want 3", hits)
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 5*time.Second {
		t.Fatalf("unexpected backoff %v", slept)
	}
}

func TestNotify_DisabledIsNoop(t *testing.T) {
	var n *Notifier
	if err := n.Notify(context.Background(), "x"); err != nil {
		t.Fatalf("nil notifier should be a no-op: %v", err)
	}
	n.NotifyAsync("x")
	n.Wait()
}
