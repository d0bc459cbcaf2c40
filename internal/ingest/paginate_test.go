package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/david/procurement-scout/internal/browser/browsertest"
)

func listingHTML(n int, hasNext bool) string {
	next := ""
	if hasNext {
		next = `<a class="next" href="#">Next</a>`
	}
	return fmt.Sprintf(`<html><body><a class="item" href="/p/%d">Project %d</a>%s</body></html>`, n, n, next)
}

func TestOffsetPaginator_URL(t *testing.T) {
	wb := OffsetPaginator{Template: "https://x.example/list?os={n}", Step: 20}
	if got := wb.URL(2); got != "https://x.example/list?os=40" {
		t.Fatalf("unexpected url %s", got)
	}
	fmo := OffsetPaginator{Template: "https://x.example/list?page={n}", Start: 1}
	if got := fmo.URL(0); got != "https://x.example/list?page=1" {
		t.Fatalf("unexpected url %s", got)
	}
}

func TestClickPaginator_AdvancesUntilNoNext(t *testing.T) {
	page := browsertest.NewPage(listingHTML(1, true))
	current := 1
	const last = 3
	page.OnClick = map[string]func(p *browsertest.Page) error{
		"a.next": func(p *browsertest.Page) error {
			current++
			p.SetDoc(listingHTML(current, current < last))
			return nil
		},
	}
	pager := ClickPaginator{Next: []string{"a.next"}, Rows: "a.item", Sleep: func(time.Duration) {}}

	advances := 0
	for pager.Advance(context.Background(), page) {
		advances++
		if advances > 10 {
			t.Fatal("paginator did not terminate")
		}
	}
	if advances != last-1 {
		t.Fatalf("expected %d advances, got %d", last-1, advances)
	}
}

func TestClickPaginator_StallEndsPagination(t *testing.T) {
	page := browsertest.NewPage(listingHTML(1, true))
	page.OnClick = map[string]func(p *browsertest.Page) error{
		"a.next": func(p *browsertest.Page) error { return nil },
	}
	clock := newFakeClock()
	start := clock.Now()
	pager := ClickPaginator{
		Next:    []string{"a.next"},
		Rows:    "a.item",
		Timeout: 15 * time.Second,
		Now:     clock.Now,
		Sleep:   clock.Sleep,
	}

	if pager.Advance(context.Background(), page) {
		t.Fatal("expected no advance when the listing does not change")
	}
	if elapsed := clock.Now().Sub(start); elapsed < 15*time.Second {
		t.Fatalf("expected to wait the full timeout, waited %s", elapsed)
	}
	if len(page.Clicks) != 1 {
		t.Fatalf("expected one click, got %v", page.Clicks)
	}
}

func TestClickPaginator_MarkerChange(t *testing.T) {
	page := browsertest.NewPage(`<span class="current">1</span><a class="item" href="/p/1">x</a><a class="next">Next</a>`)
	page.OnClick = map[string]func(p *browsertest.Page) error{
		"a.next": func(p *browsertest.Page) error {
			// Same rows, new page number.
			p.SetDoc(`<span class="current">2</span><a class="item" href="/p/1">x</a><a class="next">Next</a>`)
			return nil
		},
	}
	pager := ClickPaginator{Next: []string{"a.next"}, Marker: "span.current", Rows: "a.item", Sleep: func(time.Duration) {}}
	if !pager.Advance(context.Background(), page) {
		t.Fatal("expected marker change to count as a new page")
	}
}
