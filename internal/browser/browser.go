// Package browser wraps the stealth Chromium sessions the scrapers drive.
//
// Everything above this package talks to Page, Session and Tab, so site
// logic can be exercised against the in-memory doubles in browsertest.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ysmood/gson"
)

var ErrNoElement = errors.New("element not found")

// Page is one browsing context: a window, a tab or an iframe.
// Selectors starting with "//" or "(" are treated as XPath.
type Page interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error)
	Exists(ctx context.Context, selector string) (bool, error)
	Visible(ctx context.Context, selector string) (bool, error)
	WaitElement(ctx context.Context, selector string, timeout time.Duration) error
	Text(ctx context.Context, selector string) (string, error)
	Click(ctx context.Context, selector string) error
	Frame(ctx context.Context, selector string) (Page, error)
	URL() string
}

// Tab is a secondary page opened for a detail visit.
type Tab interface {
	Page
	Close() error
}

// Session is one isolated browser. The embedded Page is the original window.
type Session interface {
	Page
	NewTab(ctx context.Context) (Tab, error)
	Focus(ctx context.Context) error
	Close() error
}

type Launcher interface {
	Open(ctx context.Context) (Session, error)
}

// WithTab opens a tab, navigates it to url and runs fn. The tab is closed
// and the original window refocused on every exit path, panics included.
func WithTab(ctx context.Context, s Session, url string, fn func(Page) error) (err error) {
	tab, err := s.NewTab(ctx)
	if err != nil {
		return fmt.Errorf("open tab: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detail %s panicked: %v", url, r)
		}
		if cerr := tab.Close(); cerr != nil {
			log.Printf("[Browser] close tab for %s: %v", url, cerr)
		}
		if ferr := s.Focus(context.WithoutCancel(ctx)); ferr != nil {
			log.Printf("[Browser] refocus main window: %v", ferr)
		}
	}()

	if err := tab.Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return fn(tab)
}

// EvalString runs js and returns its string result, or "" on any failure.
func EvalString(ctx context.Context, p Page, js string, args ...interface{}) string {
	res, err := p.Eval(ctx, js, args...)
	if err != nil || res.Nil() {
		return ""
	}
	return res.Str()
}
