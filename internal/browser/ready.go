package browser

import (
	"context"
	"log"
	"time"
)

const (
	scrollBottomJS = `() => { window.scrollTo(0, document.body.scrollHeight); return true; }`
	readyStateJS   = `() => document.readyState === 'complete'`
	ajaxIdleJS     = `() => typeof window.jQuery === 'undefined' || window.jQuery.active === 0`

	// LoaderSelectors are the spinner/loader patterns the waiter watches.
	LoaderSelectors = ".loading, .spinner, .loader, [class*='loading'], [class*='spinner'], [class*='loader']"

	loadersGoneJS = `(sel) => !Array.from(document.querySelectorAll(sel)).some(el => {
		const s = window.getComputedStyle(el);
		return el.offsetParent !== null && s.visibility !== 'hidden' && s.display !== 'none';
	})`
)

// ReadyReport says which sub-waits settled before their bound.
type ReadyReport struct {
	DocumentReady bool
	AjaxIdle      bool
	LoadersGone   bool
}

// Waiter approximates "dynamic content finished loading". Each sub-wait has
// its own bound and a failing sub-wait never fails the whole wait.
type Waiter struct {
	StepTimeout time.Duration
	Interval    time.Duration
	Grace       time.Duration

	Now   func() time.Time
	Sleep func(time.Duration)
}

func NewWaiter(grace time.Duration) *Waiter {
	return &Waiter{
		StepTimeout: 10 * time.Second,
		Interval:    250 * time.Millisecond,
		Grace:       grace,
	}
}

func (w *Waiter) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Waiter) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	if w.Sleep != nil {
		w.Sleep(d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// poll evaluates js until it returns true or the step bound elapses.
func (w *Waiter) poll(ctx context.Context, p Page, js string, args ...interface{}) bool {
	deadline := w.now().Add(w.StepTimeout)
	for {
		res, err := p.Eval(ctx, js, args...)
		if err == nil && res.Bool() {
			return true
		}
		if ctx.Err() != nil || !w.now().Before(deadline) {
			return false
		}
		w.sleep(ctx, w.Interval)
	}
}

// AwaitReady scrolls to the bottom, then waits for document readiness,
// outstanding jQuery requests and visible loaders, then sleeps the grace period.
func (w *Waiter) AwaitReady(ctx context.Context, p Page) ReadyReport {
	if _, err := p.Eval(ctx, scrollBottomJS); err != nil {
		log.Printf("[Browser] scroll to bottom failed: %v", err)
	}

	report := ReadyReport{
		DocumentReady: w.poll(ctx, p, readyStateJS),
		AjaxIdle:      w.poll(ctx, p, ajaxIdleJS),
		LoadersGone:   w.poll(ctx, p, loadersGoneJS, LoaderSelectors),
	}
	if !report.DocumentReady || !report.AjaxIdle || !report.LoadersGone {
		log.Printf("[Browser] page not fully settled: %+v", report)
	}

	w.sleep(ctx, w.Grace)
	return report
}
