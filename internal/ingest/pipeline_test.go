package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/browser/browsertest"
	"github.com/david/procurement-scout/internal/models"
	"github.com/google/uuid"
)

const bankDetail = `<html><body>
	<h1>Rural Roads Rehabilitation</h1>
	<span class="country">Kenya</span>
	<span class="deadline">2026-03-15</span>
	<span class="budget">USD 5 million</span>
</body></html>`

func itemsHTML(paths ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, p := range paths {
		fmt.Fprintf(&b, `<a class="item" href="%s">%s</a>`, p, p)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// offsetLauncher serves listing pages from pages and detail pages from tabs.
func offsetLauncher(pages, tabs map[string]string) *browsertest.Launcher {
	return &browsertest.Launcher{New: func() *browsertest.Session {
		s := browsertest.NewSession(browsertest.NewPage(""))
		s.Page.Pages = pages
		s.TabPages = tabs
		return s
	}}
}

func offsetScraper() *stubScraper {
	return &stubScraper{site: site{
		id:     "bank",
		client: "Example Bank",
		rows:   "a.item",
		listing: Listing{
			Kind:   PaginateOffset,
			Offset: OffsetPaginator{Template: "https://bank.example/list?page={n}"},
		},
	}}
}

func TestPipeline_NewProject(t *testing.T) {
	launcher := offsetLauncher(
		map[string]string{
			"https://bank.example/list?page=0": itemsHTML("/p/42"),
			"https://bank.example/list?page=1": itemsHTML(),
		},
		map[string]string{"https://bank.example/p/42": bankDetail},
	)
	store := newFakeStore()
	p := NewPipeline(store, launcher, testDeps())
	runID := uuid.New()

	stats, err := p.RunScraper(context.Background(), offsetScraper(), SourceEntry{ID: "bank"}, runID)
	if err != nil {
		t.Fatalf("RunScraper: %v", err)
	}
	if stats.Pages != 2 || stats.Found != 1 || stats.Inserted != 1 || stats.Saved != 1 || stats.Errors != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(store.upserts) != 1 {
		t.Fatalf("expected one upsert, got %d", len(store.upserts))
	}
	in := store.upserts[0]
	if in.Fields.URL != "https://bank.example/p/42" || in.Fields.Client != "Example Bank" {
		t.Fatalf("unexpected identity fields %+v", in.Fields)
	}
	if in.Fields.Title != "Rural Roads Rehabilitation" || in.Fields.Country != "Kenya" {
		t.Fatalf("unexpected fields %+v", in.Fields)
	}
	if in.DeadlineAt == nil || in.DeadlineAt.Format("2006-01-02") != "2026-03-15" {
		t.Fatalf("deadline not parsed: %v", in.DeadlineAt)
	}
	if in.BudgetAmount == nil || *in.BudgetAmount != 5e6 || in.BudgetCurrency != "USD" {
		t.Fatalf("budget not parsed: %v %q", in.BudgetAmount, in.BudgetCurrency)
	}
	if in.RunID == nil || *in.RunID != runID {
		t.Fatalf("run id not attached: %v", in.RunID)
	}
	if !launcher.AllClosed() {
		t.Fatal("expected every session to be closed")
	}
	if len(launcher.Opened) != 2 {
		t.Fatalf("expected a fresh session per listing page, got %d", len(launcher.Opened))
	}
	for _, s := range launcher.Opened {
		if s.OpenTabs() != 0 {
			t.Fatalf("leaked %d tabs", s.OpenTabs())
		}
	}
}

func TestPipeline_UnchangedRescrape(t *testing.T) {
	pages := map[string]string{
		"https://bank.example/list?page=0": itemsHTML("/p/42"),
		"https://bank.example/list?page=1": itemsHTML(),
	}
	tabs := map[string]string{"https://bank.example/p/42": bankDetail}
	store := newFakeStore()
	p := NewPipeline(store, offsetLauncher(pages, tabs), testDeps())

	if _, err := p.RunScraper(context.Background(), offsetScraper(), SourceEntry{ID: "bank"}, uuid.Nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	stats, err := p.RunScraper(context.Background(), offsetScraper(), SourceEntry{ID: "bank"}, uuid.Nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.Inserted != 0 || stats.Updated != 0 || stats.Saved != 1 {
		t.Fatalf("expected an unchanged save, got %+v", stats)
	}

	tabs["https://bank.example/p/42"] = strings.Replace(bankDetail, "Kenya", "Uganda", 1)
	stats, err = p.RunScraper(context.Background(), offsetScraper(), SourceEntry{ID: "bank"}, uuid.Nil)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if stats.Updated != 1 {
		t.Fatalf("expected a changed record, got %+v", stats)
	}
	if store.upserts[2].RunID != nil {
		t.Fatal("nil run id should not be attached")
	}
}

func TestPipeline_DetailOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		fresh       bool
		extract     func(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields
		wantSkipped int
		wantErrors  int
		wantUpserts int
		wantTabs    int
	}{
		{name: "fresh url skipped", fresh: true, wantSkipped: 1, wantTabs: 0},
		{
			name: "panic in extract",
			extract: func(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
				panic("selector blew up")
			},
			wantErrors: 1,
			wantTabs:   1,
		},
		{
			name: "empty record kept out",
			extract: func(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
				return models.ScrapedFields{Title: " \x00 "}
			},
			wantErrors: 1,
			wantTabs:   1,
		},
		{name: "normal", wantUpserts: 1, wantTabs: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			launcher := offsetLauncher(
				map[string]string{
					"https://bank.example/list?page=0": itemsHTML("/p/42"),
					"https://bank.example/list?page=1": itemsHTML(),
				},
				map[string]string{"https://bank.example/p/42": bankDetail},
			)
			store := newFakeStore()
			if tt.fresh {
				store.fresh["https://bank.example/p/42"] = true
			}
			s := offsetScraper()
			s.extract = tt.extract

			stats, err := NewPipeline(store, launcher, testDeps()).
				RunScraper(context.Background(), s, SourceEntry{ID: "bank"}, uuid.Nil)
			if err != nil {
				t.Fatalf("RunScraper: %v", err)
			}
			if stats.Skipped != tt.wantSkipped || stats.Errors != tt.wantErrors || len(store.upserts) != tt.wantUpserts {
				t.Fatalf("stats %+v, upserts %d", stats, len(store.upserts))
			}

			tabs := 0
			for _, sess := range launcher.Opened {
				tabs += sess.TabsOpened
				if sess.OpenTabs() != 0 {
					t.Fatalf("leaked %d tabs", sess.OpenTabs())
				}
			}
			if tabs != tt.wantTabs {
				t.Fatalf("expected %d tabs opened, got %d", tt.wantTabs, tabs)
			}
		})
	}
}

func TestPipeline_StopBetweenDetails(t *testing.T) {
	launcher := offsetLauncher(
		map[string]string{"https://bank.example/list?page=0": itemsHTML("/p/1", "/p/2")},
		map[string]string{
			"https://bank.example/p/1": bankDetail,
			"https://bank.example/p/2": bankDetail,
		},
	)
	store := newFakeStore()
	p := NewPipeline(store, launcher, testDeps())

	visited := 0
	p.ShouldStop = func() bool { return visited > 0 }
	s := offsetScraper()
	s.extract = func(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
		visited++
		return models.ScrapedFields{Title: "Project " + url}
	}

	stats, err := p.RunScraper(context.Background(), s, SourceEntry{ID: "bank"}, uuid.Nil)
	if !IsStopped(err) {
		t.Fatalf("expected stop error, got %v", err)
	}
	if visited != 1 || stats.Saved != 1 {
		t.Fatalf("expected one detail before stopping, visited=%d stats=%+v", visited, stats)
	}
	if !launcher.AllClosed() {
		t.Fatal("session left open after stop")
	}
}

func TestPipeline_OffsetMaxPages(t *testing.T) {
	launcher := offsetLauncher(
		map[string]string{
			"https://bank.example/list?page=0": itemsHTML("/p/1"),
			"https://bank.example/list?page=1": itemsHTML("/p/2"),
		},
		map[string]string{
			"https://bank.example/p/1": bankDetail,
			"https://bank.example/p/2": bankDetail,
		},
	)
	stats, err := NewPipeline(newFakeStore(), launcher, testDeps()).
		RunScraper(context.Background(), offsetScraper(), SourceEntry{ID: "bank", MaxPages: 1}, uuid.Nil)
	if err != nil {
		t.Fatalf("RunScraper: %v", err)
	}
	if stats.Pages != 1 || len(launcher.Opened) != 1 {
		t.Fatalf("expected one page, got stats %+v sessions %d", stats, len(launcher.Opened))
	}
}

func clickFixture(total int) (*browsertest.Launcher, *stubScraper) {
	tabs := map[string]string{}
	for i := 1; i <= total; i++ {
		tabs[fmt.Sprintf("https://bank.example/p/%d", i)] = strings.Replace(bankDetail, "Rural Roads", fmt.Sprintf("Project %d", i), 1)
	}

	render := func(n int) string {
		html := itemsHTML(fmt.Sprintf("/p/%d", n))
		if n < total {
			html = strings.Replace(html, "</body>", `<a class="next" href="#">Next</a></body>`, 1)
		}
		return html
	}

	launcher := &browsertest.Launcher{New: func() *browsertest.Session {
		current := 1
		main := browsertest.NewPage("")
		main.Pages = map[string]string{"https://bank.example/list": render(1)}
		main.OnClick = map[string]func(p *browsertest.Page) error{
			"a.next": func(p *browsertest.Page) error {
				current++
				p.SetDoc(render(current))
				return nil
			},
		}
		s := browsertest.NewSession(main)
		s.TabPages = tabs
		return s
	}}

	s := &stubScraper{site: site{
		id:     "clicky",
		client: "Click Bank",
		rows:   "a.item",
		listing: Listing{
			Kind:     PaginateClick,
			StartURL: "https://bank.example/list",
			Click: ClickPaginator{
				Next:  []string{"a.next"},
				Rows:  "a.item",
				Sleep: func(time.Duration) {},
			},
		},
	}}
	return launcher, s
}

func TestPipeline_ClickPagination(t *testing.T) {
	tests := []struct {
		name      string
		maxPages  int
		wantPages int
	}{
		{name: "until last page", maxPages: 0, wantPages: 3},
		{name: "max pages", maxPages: 2, wantPages: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			launcher, s := clickFixture(3)
			store := newFakeStore()
			stats, err := NewPipeline(store, launcher, testDeps()).
				RunScraper(context.Background(), s, SourceEntry{ID: "clicky", MaxPages: tt.maxPages}, uuid.Nil)
			if err != nil {
				t.Fatalf("RunScraper: %v", err)
			}
			if stats.Pages != tt.wantPages || stats.Inserted != tt.wantPages {
				t.Fatalf("unexpected stats %+v", stats)
			}
			if len(launcher.Opened) != 1 {
				t.Fatalf("click pagination should reuse one session, got %d", len(launcher.Opened))
			}
			if !launcher.AllClosed() {
				t.Fatal("session not closed")
			}
		})
	}
}

func TestPipeline_SessionFailure(t *testing.T) {
	launcher := &browsertest.Launcher{Err: fmt.Errorf("chromium missing")}
	_, err := NewPipeline(newFakeStore(), launcher, testDeps()).
		RunScraper(context.Background(), offsetScraper(), SourceEntry{ID: "bank"}, uuid.Nil)

	var se *ScrapeError
	if !errors.As(err, &se) || se.Stage != "session" {
		t.Fatalf("expected session ScrapeError, got %v", err)
	}
}
