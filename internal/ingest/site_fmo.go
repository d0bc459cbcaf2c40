package ingest

import (
	"context"

	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/models"
)

type fmo struct {
	site
}

func newFMO() *fmo {
	return &fmo{site{
		id:     "fmo",
		client: "FMO",
		rows:   ".ProjectList__projectLink",
		listing: Listing{
			Kind:   PaginateOffset,
			Offset: OffsetPaginator{Template: "https://www.fmo.nl/project-list?page={n}", Start: 1},
		},
	}}
}

func (s *fmo) Extract(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
	doc := snapshot(ctx, page)
	f := models.ScrapedFields{URL: url, Client: s.client}

	// Second aside block: 2 country, 3 sector, 5 deadline, 6 budget.
	aside := func(n int) (string, error) {
		box, err := nthSel(doc, ".ProjectDetail__asideInner", 1)
		if err != nil {
			return "", err
		}
		dd := box.Find("dd")
		if n >= dd.Length() {
			return "", errNoMatch
		}
		return normalizeSpace(dd.Eq(n).Text()), nil
	}

	f.Title = field(s.id, "title", func() (string, error) { return textOf(doc, ".ProjectDetail__title") })
	f.Country = field(s.id, "country", func() (string, error) { return aside(2) })
	f.Sector = field(s.id, "sector", func() (string, error) { return aside(3) })
	f.Deadline = field(s.id, "deadline", func() (string, error) { return aside(5) })
	f.Budget = field(s.id, "budget", func() (string, error) { return aside(6) })
	f.Summary = field(s.id, "summary", func() (string, error) { return textOf(doc, ".ProjectDetail__main") })
	return f
}
