package browser_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/browser/browsertest"
)

func TestWithTab_ClosesTabOnEveryPath(t *testing.T) {
	boom := errors.New("boom")

	cases := []struct {
		name    string
		fn      func(browser.Page) error
		wantErr string
	}{
		{"success", func(browser.Page) error { return nil }, ""},
		{"error", func(browser.Page) error { return boom }, "boom"},
		{"panic", func(browser.Page) error { panic("selector exploded") }, "panicked"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := browsertest.NewSession(nil)
			s.TabPages["https://example.org/p/1"] = "<h1>Project</h1>"

			err := browser.WithTab(context.Background(), s, "https://example.org/p/1", tc.fn)
			if tc.wantErr == "" && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tc.wantErr)) {
				t.Fatalf("error = %v, want containing %q", err, tc.wantErr)
			}
			if s.OpenTabs() != 0 {
				t.Fatalf("tab leaked: %d open", s.OpenTabs())
			}
			if s.Focuses != 1 {
				t.Fatalf("main window refocused %d times, want 1", s.Focuses)
			}
		})
	}
}

func TestWithTab_NavigateFailureStillCloses(t *testing.T) {
	s := browsertest.NewSession(nil)
	s.TabSetup = func(p *browsertest.Page) {
		p.NavigateErr = map[string]error{"https://example.org/dead": errors.New("net::ERR_NAME_NOT_RESOLVED")}
	}

	called := false
	err := browser.WithTab(context.Background(), s, "https://example.org/dead", func(browser.Page) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Fatalf("navigate failure should skip fn and return error, got err=%v called=%v", err, called)
	}
	if s.OpenTabs() != 0 {
		t.Fatalf("tab leaked after navigate failure")
	}
}

func TestWithTab_DetailSeesTabDocument(t *testing.T) {
	s := browsertest.NewSession(browsertest.NewPage("<div class='list'></div>"))
	s.TabPages["https://example.org/p/2"] = "<h1 id='t'>Rural roads</h1>"

	var title string
	err := browser.WithTab(context.Background(), s, "https://example.org/p/2", func(p browser.Page) error {
		var err error
		title, err = p.Text(context.Background(), "#t")
		return err
	})
	if err != nil {
		t.Fatalf("WithTab: %v", err)
	}
	if title != "Rural roads" {
		t.Fatalf("title = %q", title)
	}
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func TestAwaitReady_FailingSubWaitIsNonFatal(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := browsertest.NewPage("<body></body>")
	p.EvalFunc = func(js string, args ...interface{}) (interface{}, error) {
		switch {
		case strings.Contains(js, "jQuery"):
			return false, nil // never settles
		case strings.Contains(js, "readyState"):
			return true, nil
		default:
			return true, nil
		}
	}

	w := &browser.Waiter{
		StepTimeout: 5 * time.Second,
		Interval:    500 * time.Millisecond,
		Grace:       2 * time.Second,
		Now:         clock.Now,
		Sleep:       clock.Sleep,
	}
	start := clock.now
	report := w.AwaitReady(context.Background(), p)

	if !report.DocumentReady || !report.LoadersGone {
		t.Fatalf("expected document and loaders settled: %+v", report)
	}
	if report.AjaxIdle {
		t.Fatalf("jQuery wait should have timed out: %+v", report)
	}
	elapsed := clock.now.Sub(start)
	if elapsed < 7*time.Second || elapsed > 8*time.Second {
		t.Fatalf("elapsed %s, want bounded jQuery wait plus grace", elapsed)
	}
}

func TestDismissOverlays_ClicksConsent(t *testing.T) {
	p := browsertest.NewPage(`<div id="onetrust-banner"><button id="onetrust-accept-btn-handler">OK</button></div>`)
	browser.DismissOverlays(context.Background(), p)

	if len(p.Clicks) != 1 || p.Clicks[0] != "#onetrust-accept-btn-handler" {
		t.Fatalf("clicks = %v", p.Clicks)
	}
}
