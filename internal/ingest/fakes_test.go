package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/db"
	"github.com/david/procurement-scout/internal/models"
	"github.com/google/uuid"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]models.ScrapedFields
	fresh   map[string]bool
	upserts []db.UpsertInput
	started []string
	runs    map[uuid.UUID]db.RunUpdate
	order   []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: map[string]models.ScrapedFields{},
		fresh:   map[string]bool{},
		runs:    map[uuid.UUID]db.RunUpdate{},
	}
}

func (s *fakeStore) UpsertByURL(ctx context.Context, in db.UpsertInput) (db.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, in)
	existing, ok := s.records[in.Fields.URL]
	s.records[in.Fields.URL] = in.Fields
	return db.UpsertResult{ID: uuid.New(), Inserted: !ok, Changed: ok && existing != in.Fields}, nil
}

func (s *fakeStore) FreshURLs(ctx context.Context, urls []string, staleAfter time.Duration) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]bool{}
	for _, u := range urls {
		if s.fresh[u] {
			out[u] = true
		}
	}
	return out, nil
}

func (s *fakeStore) StartRun(ctx context.Context, sweepID, sourceID string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.started = append(s.started, sourceID)
	s.order = append(s.order, id)
	return id, nil
}

func (s *fakeStore) FinishRun(ctx context.Context, runID uuid.UUID, u db.RunUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID] = u
	return nil
}

// statuses returns the finished run statuses in start order.
func (s *fakeStore) statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.runs[id].Status)
	}
	return out
}

type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	inputs  []string
	reply   func(prompt, text string) (string, error)
}

func (f *fakeLLM) Extract(ctx context.Context, systemPrompt, rawText string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, systemPrompt)
	f.inputs = append(f.inputs, rawText)
	f.mu.Unlock()
	if f.reply == nil {
		return "llm answer", nil
	}
	return f.reply(systemPrompt, rawText)
}

func testDeps() *Deps {
	return &Deps{
		Waiter: &browser.Waiter{
			StepTimeout: time.Second,
			Interval:    time.Millisecond,
			Sleep:       func(time.Duration) {},
		},
		ListingTimeout: time.Second,
	}
}

// stubScraper reads <h1> as the title unless extract is set.
type stubScraper struct {
	site
	enumerate func(ctx context.Context, d *Deps, page browser.Page) ([]string, error)
	extract   func(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields
}

func (s *stubScraper) Enumerate(ctx context.Context, d *Deps, page browser.Page) ([]string, error) {
	if s.enumerate != nil {
		return s.enumerate(ctx, d, page)
	}
	return s.site.Enumerate(ctx, d, page)
}

func (s *stubScraper) Extract(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
	if s.extract != nil {
		return s.extract(ctx, d, page, url)
	}
	doc := snapshot(ctx, page)
	return models.ScrapedFields{
		Title:    field(s.id, "title", func() (string, error) { return textOf(doc, "h1") }),
		Country:  field(s.id, "country", func() (string, error) { return textOf(doc, ".country") }),
		Deadline: field(s.id, "deadline", func() (string, error) { return textOf(doc, ".deadline") }),
		Budget:   field(s.id, "budget", func() (string, error) { return textOf(doc, ".budget") }),
	}
}

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
