package ingest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/david/procurement-scout/internal/db"
	"github.com/david/procurement-scout/internal/notify"
	"github.com/google/uuid"
)

// SweepStatus is a snapshot of the current or last sweep.
type SweepStatus struct {
	Running       bool                `json:"running"`
	SweepID       string              `json:"sweep_id,omitempty"`
	Source        string              `json:"source,omitempty"`
	Current       string              `json:"current,omitempty"`
	StopRequested bool                `json:"stop_requested"`
	StartedAt     *time.Time          `json:"started_at,omitempty"`
	FinishedAt    *time.Time          `json:"finished_at,omitempty"`
	Results       map[string]RunStats `json:"results,omitempty"`
	Errors        map[string]string   `json:"errors,omitempty"`
}

// Orchestrator runs registry sources one after another. Only one sweep may
// run per process; a second request is rejected rather than queued.
type Orchestrator struct {
	Pipeline *Pipeline
	Registry *Registry
	Factory  *ScraperFactory
	Store    Store
	Notifier *notify.Notifier

	BackendAPI   string
	SweepTimeout time.Duration

	lock sync.Mutex
	stop atomic.Bool

	mu     sync.Mutex
	status SweepStatus
	done   chan struct{} // closed when the holder of lock releases it
}

func NewOrchestrator(p *Pipeline, reg *Registry, store Store, n *notify.Notifier) *Orchestrator {
	o := &Orchestrator{
		Pipeline:     p,
		Registry:     reg,
		Factory:      GlobalScraperFactory,
		Store:        store,
		Notifier:     n,
		SweepTimeout: 12 * time.Hour,
	}
	p.ShouldStop = o.stop.Load
	return o
}

// RunAll sweeps every enabled source and blocks until done.
func (o *Orchestrator) RunAll(ctx context.Context) (map[string]RunStats, error) {
	if !o.acquire() {
		return nil, ErrAlreadyRunning
	}
	defer o.release()
	return o.sweep(ctx, uuid.NewString()[:8], "", o.Registry.Enabled())
}

// RunSource runs a single source under the same lock, enabled or not.
func (o *Orchestrator) RunSource(ctx context.Context, sourceID string) (RunStats, error) {
	entry, ok := o.Registry.Get(sourceID)
	if !ok {
		return RunStats{}, fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	if !o.acquire() {
		return RunStats{}, ErrAlreadyRunning
	}
	defer o.release()

	results, err := o.sweep(ctx, uuid.NewString()[:8], sourceID, []SourceEntry{entry})
	return results[sourceID], err
}

// Start launches a sweep in the background and returns its id at once.
// An empty sourceID sweeps every enabled source.
func (o *Orchestrator) Start(ctx context.Context, sourceID string) (string, error) {
	entries := o.Registry.Enabled()
	if sourceID != "" {
		entry, ok := o.Registry.Get(sourceID)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
		}
		entries = []SourceEntry{entry}
	}
	if !o.acquire() {
		return "", ErrAlreadyRunning
	}

	sweepID := uuid.NewString()[:8]
	timeout := o.SweepTimeout
	if timeout <= 0 {
		timeout = 12 * time.Hour
	}
	// The sweep outlives the request that started it.
	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)

	o.setStatus(func(s *SweepStatus) {
		now := time.Now()
		*s = SweepStatus{Running: true, SweepID: sweepID, Source: sourceID, StartedAt: &now}
	})

	go func() {
		defer o.release()
		defer cancel()
		if _, err := o.sweep(bgCtx, sweepID, sourceID, entries); err != nil {
			log.Printf("[Sweep %s] ended: %v", sweepID, err)
		}
	}()
	return sweepID, nil
}

// acquire takes the run lock and clears any stop left over from the previous
// sweep. A Stop accepted after this point is seen by the sweep.
func (o *Orchestrator) acquire() bool {
	if !o.lock.TryLock() {
		return false
	}
	o.stop.Store(false)
	o.mu.Lock()
	o.done = make(chan struct{})
	o.mu.Unlock()
	return true
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	if o.done != nil {
		close(o.done)
		o.done = nil
	}
	o.mu.Unlock()
	o.lock.Unlock()
}

// Wait blocks until no sweep holds the run lock, or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop asks the running sweep to end after the current detail page.
func (o *Orchestrator) Stop() bool {
	if !o.Running() {
		return false
	}
	o.stop.Store(true)
	o.setStatus(func(s *SweepStatus) { s.StopRequested = true })
	log.Printf("[Sweep] Stop requested")
	return true
}

func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status.Running
}

func (o *Orchestrator) Status() SweepStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.status
	st.Results = make(map[string]RunStats, len(o.status.Results))
	for k, v := range o.status.Results {
		st.Results[k] = v
	}
	st.Errors = make(map[string]string, len(o.status.Errors))
	for k, v := range o.status.Errors {
		st.Errors[k] = v
	}
	return st
}

func (o *Orchestrator) setStatus(fn func(s *SweepStatus)) {
	o.mu.Lock()
	fn(&o.status)
	o.mu.Unlock()
}

// sweep must be called with the run lock held.
func (o *Orchestrator) sweep(ctx context.Context, sweepID, source string, entries []SourceEntry) (map[string]RunStats, error) {
	now := time.Now()
	o.setStatus(func(s *SweepStatus) {
		*s = SweepStatus{
			Running:       true,
			SweepID:       sweepID,
			Source:        source,
			StopRequested: o.stop.Load(),
			StartedAt:     &now,
			Results:       map[string]RunStats{},
			Errors:        map[string]string{},
		}
	})

	log.Printf("[Sweep %s] Starting over %d source(s)", sweepID, len(entries))
	results := make(map[string]RunStats, len(entries))
	failures := make(map[string]string)
	var sweepErr error

	for _, entry := range entries {
		if o.stop.Load() {
			sweepErr = ErrStopped
			log.Printf("[Sweep %s] Stopped before %s", sweepID, entry.ID)
			break
		}
		if err := ctx.Err(); err != nil {
			sweepErr = err
			break
		}

		o.setStatus(func(s *SweepStatus) { s.Current = entry.ID })
		stats, err := o.runOne(ctx, sweepID, entry)
		results[entry.ID] = stats
		if err != nil && !IsStopped(err) {
			failures[entry.ID] = err.Error()
		}
		o.setStatus(func(s *SweepStatus) {
			s.Results[entry.ID] = stats
			if msg, ok := failures[entry.ID]; ok {
				s.Errors[entry.ID] = msg
			}
		})
		if IsStopped(err) {
			sweepErr = ErrStopped
			break
		}
	}

	finished := time.Now()
	o.setStatus(func(s *SweepStatus) {
		s.Running = false
		s.Current = ""
		s.FinishedAt = &finished
	})

	summary := summarize(sweepID, results, failures, finished.Sub(now))
	log.Printf("[Sweep %s] %s", sweepID, summary)
	o.Notifier.NotifyAsync(summary)
	if sweepErr == nil {
		o.callBackend(ctx, sweepID, results)
	}
	return results, sweepErr
}

// runOne runs one scraper and records its run row. Errors and panics are
// contained here so the sweep moves on to the next source.
func (o *Orchestrator) runOne(ctx context.Context, sweepID string, entry SourceEntry) (stats RunStats, err error) {
	runID, startErr := o.Store.StartRun(ctx, sweepID, entry.ID)
	if startErr != nil {
		log.Printf("[Sweep %s] %v", sweepID, startErr)
		runID = uuid.Nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = &ScrapeError{Site: entry.ID, Stage: "panic", Err: fmt.Errorf("%v", r)}
		}

		status := "completed"
		switch {
		case IsStopped(err):
			status = "stopped"
		case err != nil:
			status = "failed"
			log.Printf("[Sweep %s] Scraper %s failed: %v", sweepID, entry.ID, err)
			o.Notifier.NotifyAsync(fmt.Sprintf("procurement-scout: scraper %s failed: %v", entry.ID, err))
		}

		if runID == uuid.Nil {
			return
		}
		update := db.RunUpdate{
			Status:       status,
			Pages:        stats.Pages,
			ItemsFound:   stats.Found,
			ItemsSkipped: stats.Skipped,
			ItemsSaved:   stats.Saved,
			Errors:       stats.Errors,
			Details: map[string]interface{}{
				"inserted": stats.Inserted,
				"updated":  stats.Updated,
			},
		}
		if err != nil {
			update.Details["error"] = err.Error()
		}
		if ferr := o.Store.FinishRun(context.WithoutCancel(ctx), runID, update); ferr != nil {
			log.Printf("[Sweep %s] %v", sweepID, ferr)
		}
	}()

	scraper, err := o.Factory.Get(entry.ID)
	if err != nil {
		return RunStats{}, err
	}
	return o.Pipeline.RunScraper(ctx, scraper, entry, runID)
}

func (o *Orchestrator) callBackend(ctx context.Context, sweepID string, results map[string]RunStats) {
	if o.BackendAPI == "" || o.Notifier == nil {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	payload := map[string]interface{}{
		"event":    "sweep_completed",
		"sweep_id": sweepID,
		"results":  results,
	}
	if err := o.Notifier.Post(cctx, o.BackendAPI, payload); err != nil {
		log.Printf("[Sweep %s] backend callback failed: %v", sweepID, err)
		return
	}
	log.Printf("[Sweep %s] Backend notified", sweepID)
}

func summarize(sweepID string, results map[string]RunStats, failures map[string]string, took time.Duration) string {
	ids := make([]string, 0, len(results))
	var total RunStats
	for id, st := range results {
		ids = append(ids, id)
		total.Found += st.Found
		total.Inserted += st.Inserted
		total.Updated += st.Updated
		total.Errors += st.Errors
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "Sweep %s finished in %s: %d sources, %d links, %d new, %d changed, %d errors",
		sweepID, took.Round(time.Second), len(results), total.Found, total.Inserted, total.Updated, total.Errors)
	if len(failures) > 0 {
		failed := make([]string, 0, len(failures))
		for _, id := range ids {
			if _, ok := failures[id]; ok {
				failed = append(failed, id)
			}
		}
		fmt.Fprintf(&b, "; failed: %s", strings.Join(failed, ", "))
	}
	return b.String()
}
