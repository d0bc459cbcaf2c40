package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/david/procurement-scout/internal/ai"
	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/db"
	"github.com/david/procurement-scout/internal/models"
	"github.com/google/uuid"
)

// Pipeline drives one scraper through its listing pages and detail tabs
// and persists what it finds.
type Pipeline struct {
	Store    Store
	Launcher browser.Launcher
	Deps     *Deps
	Embedder ai.Embedder

	StaleAfter time.Duration
	PageDelay  time.Duration

	// ShouldStop is polled between pages and between detail visits.
	ShouldStop func() bool
}

func NewPipeline(store Store, launcher browser.Launcher, deps *Deps) *Pipeline {
	if deps == nil {
		deps = &Deps{}
	}
	if deps.Waiter == nil {
		deps.Waiter = browser.NewWaiter(2 * time.Second)
	}
	return &Pipeline{
		Store:    store,
		Launcher: launcher,
		Deps:     deps,
	}
}

func (p *Pipeline) stopped() bool {
	return p.ShouldStop != nil && p.ShouldStop()
}

// RunScraper runs s to completion, until MaxPages is reached or the stop
// signal is raised. Per-URL failures are counted in the stats; only
// scraper-level failures come back as a *ScrapeError.
func (p *Pipeline) RunScraper(ctx context.Context, s Scraper, entry SourceEntry, runID uuid.UUID) (RunStats, error) {
	var stats RunStats
	listing := s.Listing()

	start := time.Now()
	log.Printf("[Scraper %s] Starting (%s pagination, max_pages=%d)", s.ID(), listing.Kind, entry.MaxPages)

	var err error
	switch listing.Kind {
	case PaginateOffset:
		err = p.runOffset(ctx, s, entry, runID, &stats)
	case PaginateClick:
		err = p.runClick(ctx, s, entry, runID, &stats)
	default:
		err = p.runSingle(ctx, s, runID, &stats)
	}

	log.Printf("[Scraper %s] Finished in %s: pages=%d found=%d skipped=%d inserted=%d updated=%d errors=%d",
		s.ID(), time.Since(start).Round(time.Second), stats.Pages, stats.Found, stats.Skipped,
		stats.Inserted, stats.Updated, stats.Errors)
	return stats, err
}

func (p *Pipeline) runOffset(ctx context.Context, s Scraper, entry SourceEntry, runID uuid.UUID, stats *RunStats) error {
	listing := s.Listing()
	for page := 0; ; page++ {
		if entry.MaxPages > 0 && page >= entry.MaxPages {
			log.Printf("[Scraper %s] Reached max_pages=%d", s.ID(), entry.MaxPages)
			return nil
		}
		if p.stopped() {
			return ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		stage := "listing"
		if page > 0 {
			stage = "paginate"
			p.pause(ctx)
		}

		// Offset sites get a fresh browser per page.
		n, err := p.offsetPage(ctx, s, listing.Offset.URL(page), stage, runID, stats)
		if err != nil {
			return err
		}
		if n == 0 {
			log.Printf("[Scraper %s] No rows on page %d, listing exhausted", s.ID(), page)
			return nil
		}
	}
}

func (p *Pipeline) offsetPage(ctx context.Context, s Scraper, url, stage string, runID uuid.UUID, stats *RunStats) (int, error) {
	sess, err := p.Launcher.Open(ctx)
	if err != nil {
		return 0, &ScrapeError{Site: s.ID(), Stage: "session", Err: err}
	}
	defer closeSession(s.ID(), sess)

	if err := sess.Navigate(ctx, url); err != nil {
		return 0, &ScrapeError{Site: s.ID(), Stage: stage, Err: err}
	}
	return p.processListing(ctx, sess, s, runID, stats)
}

func (p *Pipeline) runClick(ctx context.Context, s Scraper, entry SourceEntry, runID uuid.UUID, stats *RunStats) error {
	listing := s.Listing()
	sess, err := p.Launcher.Open(ctx)
	if err != nil {
		return &ScrapeError{Site: s.ID(), Stage: "session", Err: err}
	}
	defer closeSession(s.ID(), sess)

	if err := sess.Navigate(ctx, listing.StartURL); err != nil {
		return &ScrapeError{Site: s.ID(), Stage: "listing", Err: err}
	}

	pager := listing.Click
	if pager.Timeout <= 0 {
		pager.Timeout = p.Deps.clickTimeout()
	}

	for {
		n, err := p.processListing(ctx, sess, s, runID, stats)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if entry.MaxPages > 0 && stats.Pages >= entry.MaxPages {
			log.Printf("[Scraper %s] Reached max_pages=%d", s.ID(), entry.MaxPages)
			return nil
		}
		if p.stopped() {
			return ErrStopped
		}
		if !pager.Advance(ctx, sess) {
			return nil
		}
	}
}

func (p *Pipeline) runSingle(ctx context.Context, s Scraper, runID uuid.UUID, stats *RunStats) error {
	sess, err := p.Launcher.Open(ctx)
	if err != nil {
		return &ScrapeError{Site: s.ID(), Stage: "session", Err: err}
	}
	defer closeSession(s.ID(), sess)

	if err := sess.Navigate(ctx, s.Listing().StartURL); err != nil {
		return &ScrapeError{Site: s.ID(), Stage: "listing", Err: err}
	}
	_, err = p.processListing(ctx, sess, s, runID, stats)
	return err
}

// processListing handles the listing page the session currently shows and
// returns how many detail URLs it held.
func (p *Pipeline) processListing(ctx context.Context, sess browser.Session, s Scraper, runID uuid.UUID, stats *RunStats) (int, error) {
	if p.Deps.AntiBot != nil {
		p.Deps.AntiBot.Handle(ctx, sess)
	}
	p.Deps.Waiter.AwaitReady(ctx, sess)

	urls, err := s.Enumerate(ctx, p.Deps, sess)
	if err != nil {
		return 0, &ScrapeError{Site: s.ID(), Stage: "listing", Err: err}
	}
	stats.Pages++
	stats.Found += len(urls)
	log.Printf("[Scraper %s] Page %d: %d detail links", s.ID(), stats.Pages, len(urls))
	if len(urls) == 0 {
		return 0, nil
	}

	fresh, err := p.Store.FreshURLs(ctx, urls, p.StaleAfter)
	if err != nil {
		log.Printf("[Scraper %s] fresh-url lookup failed, extracting all: %v", s.ID(), err)
		fresh = nil
	}

	for _, url := range urls {
		if p.stopped() {
			return len(urls), ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return len(urls), err
		}
		if fresh[url] {
			stats.Skipped++
			continue
		}
		p.visit(ctx, sess, s, url, runID, stats)
	}
	return len(urls), nil
}

// visit extracts one detail page in its own tab and upserts the result.
func (p *Pipeline) visit(ctx context.Context, sess browser.Session, s Scraper, url string, runID uuid.UUID, stats *RunStats) {
	var fields models.ScrapedFields
	err := browser.WithTab(ctx, sess, url, func(tab browser.Page) error {
		if p.Deps.AntiBot != nil {
			p.Deps.AntiBot.Handle(ctx, tab)
		}
		p.Deps.Waiter.AwaitReady(ctx, tab)
		fields = s.Extract(ctx, p.Deps, tab, url)
		return nil
	})
	if err != nil {
		stats.Errors++
		log.Printf("[Scraper %s] detail %s failed: %v", s.ID(), url, err)
		return
	}

	fields.URL = url
	fields.Client = s.Client()
	fields = cleanFields(fields)
	if fields.Empty() {
		stats.Errors++
		log.Printf("[Scraper %s] nothing extracted from %s, keeping stored record", s.ID(), url)
		return
	}

	res, err := p.save(ctx, s.ID(), runID, fields)
	if err != nil {
		stats.Errors++
		log.Printf("[Scraper %s] save %s failed: %v", s.ID(), url, err)
		return
	}
	stats.Saved++
	switch {
	case res.Inserted:
		stats.Inserted++
		log.Printf("[Scraper %s] New: %s", s.ID(), truncateForLog(fields.Title, 80))
	case res.Changed:
		stats.Updated++
		log.Printf("[Scraper %s] Changed: %s", s.ID(), truncateForLog(fields.Title, 80))
	}
}

func (p *Pipeline) save(ctx context.Context, sourceID string, runID uuid.UUID, fields models.ScrapedFields) (db.UpsertResult, error) {
	in := db.UpsertInput{Fields: fields, SourceID: sourceID}
	if runID != uuid.Nil {
		in.RunID = &runID
	}
	if t, ok := ParseDeadline(fields.Deadline); ok {
		in.DeadlineAt = &t
	}
	if amount, currency, ok := ParseBudget(fields.Budget); ok {
		in.BudgetAmount = &amount
		in.BudgetCurrency = currency
	}
	if p.Embedder != nil && fields.Summary != "" {
		vec, err := p.Embedder.GenerateEmbedding(ctx, fields.Title+"\n"+fields.Summary)
		if err != nil {
			log.Printf("[Scraper %s] embedding failed for %s: %v", sourceID, fields.URL, err)
		} else {
			in.Embedding = vec
		}
	}
	res, err := p.Store.UpsertByURL(ctx, in)
	if err != nil {
		return db.UpsertResult{}, fmt.Errorf("upsert: %w", err)
	}
	return res, nil
}

func (p *Pipeline) pause(ctx context.Context) {
	if p.PageDelay <= 0 {
		return
	}
	t := time.NewTimer(p.PageDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func closeSession(siteID string, sess browser.Session) {
	if err := sess.Close(); err != nil {
		log.Printf("[Scraper %s] close session: %v", siteID, err)
	}
}

// cleanFields drops invalid UTF-8 and NUL bytes, which Postgres text rejects.
func cleanFields(f models.ScrapedFields) models.ScrapedFields {
	for _, v := range []*string{&f.Title, &f.Country, &f.Sector, &f.Summary, &f.Deadline, &f.Program, &f.Budget} {
		*v = strings.TrimSpace(sanitizeUTF8(*v))
	}
	return f
}

func sanitizeUTF8(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.ReplaceAll(s, "\x00", "")
}

func truncateForLog(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// IsStopped reports whether err is the cooperative stop signal.
func IsStopped(err error) bool {
	return errors.Is(err, ErrStopped)
}
