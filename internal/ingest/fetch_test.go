package ingest

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
)

func TestHTTPFetcher_BlocksLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	_, _, err := NewHTTPFetcher("").Fetch(context.Background(), srv.URL+"/notice.pdf")
	if err == nil || !strings.Contains(err.Error(), "blocked private IP") {
		t.Fatalf("expected loopback to be blocked, got %v", err)
	}
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 body"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher("test-agent")
	f.Client = srv.Client()

	body, ct, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "%PDF-1.4 body" || ct != "application/pdf" || calls.Load() != 2 {
		t.Fatalf("unexpected result body=%q ct=%q calls=%d", body, ct, calls.Load())
	}
}

func TestHTTPFetcher_NoRetryOnNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewHTTPFetcher("")
	f.Client = srv.Client()
	if _, _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected an error for 404")
	}
	if calls.Load() != 1 {
		t.Fatalf("404 should not be retried, got %d calls", calls.Load())
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.20.0.1", true},
		{"192.168.1.1", true},
		{"169.254.169.254", true},
		{"::1", true},
		{"fd00::1", true},
		{"8.8.8.8", false},
		{"2606:4700::1111", false},
	}
	for _, tt := range tests {
		if got := isPrivateIP(net.ParseIP(tt.ip)); got != tt.want {
			t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestSafeCheckRedirect(t *testing.T) {
	tests := []struct {
		target string
		ok     bool
	}{
		{"https://www.afdb.org/files/n.pdf", true},
		{"http://localhost/admin", false},
		{"http://printer.local/", false},
		{"file:///etc/passwd", false},
	}
	for _, tt := range tests {
		u, _ := url.Parse(tt.target)
		err := safeCheckRedirect(&http.Request{URL: u}, nil)
		if (err == nil) != tt.ok {
			t.Errorf("redirect to %s: err=%v, want ok=%v", tt.target, err, tt.ok)
		}
	}
}
