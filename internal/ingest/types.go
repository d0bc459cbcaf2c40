package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/david/procurement-scout/internal/ai"
	"github.com/david/procurement-scout/internal/antibot"
	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/db"
	"github.com/david/procurement-scout/internal/models"
	"github.com/google/uuid"
)

var (
	ErrAlreadyRunning = errors.New("a scrape sweep is already running")
	ErrStopped        = errors.New("scrape stopped")
	ErrUnknownSource  = errors.New("unknown source")
)

// Scraper is one institution's listing and detail logic. The shared
// lifecycle (sessions, tabs, waits, upserts, pagination) lives in Pipeline.
type Scraper interface {
	ID() string
	Client() string
	Listing() Listing
	// Enumerate returns the absolute detail URLs on the current listing page.
	Enumerate(ctx context.Context, d *Deps, page browser.Page) ([]string, error)
	// Extract reads one detail page. Missing fields come back empty.
	Extract(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields
}

type PaginationKind string

const (
	PaginateOffset PaginationKind = "offset"
	PaginateClick  PaginationKind = "click"
	PaginateSingle PaginationKind = "single"
)

// Listing says where a site's listing starts and how it advances.
type Listing struct {
	Kind     PaginationKind
	StartURL string
	Offset   OffsetPaginator
	Click    ClickPaginator
}

// Deps are the shared collaborators handed to every scraper.
type Deps struct {
	LLM     ai.FieldExtractor
	Waiter  *browser.Waiter
	AntiBot *antibot.Detector
	Fetcher Fetcher

	ListingTimeout time.Duration
	ClickTimeout   time.Duration
}

// Store is the persistence the pipeline needs.
type Store interface {
	UpsertByURL(ctx context.Context, in db.UpsertInput) (db.UpsertResult, error)
	FreshURLs(ctx context.Context, urls []string, staleAfter time.Duration) (map[string]bool, error)
	StartRun(ctx context.Context, sweepID, sourceID string) (uuid.UUID, error)
	FinishRun(ctx context.Context, runID uuid.UUID, u db.RunUpdate) error
}

// RunStats counts one scraper's pass.
type RunStats struct {
	Pages    int `json:"pages"`
	Found    int `json:"found"`
	Skipped  int `json:"skipped"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Saved    int `json:"saved"`
	Errors   int `json:"errors"`
}

// ScrapeError is a scraper-level failure. Stage is one of session,
// listing or paginate.
type ScrapeError struct {
	Site  string
	Stage string
	Err   error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scraper %s: %s: %v", e.Site, e.Stage, e.Err)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}
