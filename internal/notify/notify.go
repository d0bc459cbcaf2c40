// Package notify posts operator messages to a Slack-compatible webhook.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

const signatureHeader = "X-Scout-Signature"

var defaultDelays = []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}

// Notifier delivers messages. A Notifier with an empty URL drops everything.
type Notifier struct {
	URL    string
	Secret string

	Delays []time.Duration
	Sleep  func(time.Duration)

	client *http.Client
	wg     sync.WaitGroup
}

func New(url, secret string) *Notifier {
	return &Notifier{
		URL:    url,
		Secret: secret,
		Delays: defaultDelays,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.URL != ""
}

// Notify sends {"text": msg} once.
func (n *Notifier) Notify(ctx context.Context, msg string) error {
	if !n.Enabled() {
		return nil
	}
	return n.Post(ctx, n.URL, map[string]string{"text": msg})
}

// Post sends payload as JSON, signed with HMAC-SHA256 when a secret is set.
func (n *Notifier) Post(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if n.Secret != "" {
		mac := hmac.New(sha256.New, []byte(n.Secret))
		mac.Write(body)
		req.Header.Set(signatureHeader, "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	client := n.client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// NotifyAsync delivers msg in the background, retrying on failure.
// Delivery errors are logged and otherwise dropped.
func (n *Notifier) NotifyAsync(msg string) {
	if !n.Enabled() {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		sleep := n.Sleep
		if sleep == nil {
			sleep = time.Sleep
		}
		for attempt, delay := range n.Delays {
			if delay > 0 {
				sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := n.Notify(ctx, msg)
			cancel()
			if err == nil {
				return
			}
			log.Printf("[Notify] attempt %d failed: %v", attempt+1, err)
		}
		log.Printf("[Notify] giving up after %d attempts", len(n.Delays))
	}()
}

// Wait blocks until pending async deliveries finish.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}
