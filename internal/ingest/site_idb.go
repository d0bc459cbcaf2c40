package ingest

import (
	"context"

	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/models"
)

const idbStats = `idb-project-table-row p[slot="stat-data"]`

type idb struct {
	site
}

func newIDB() *idb {
	return &idb{site{
		id:     "idb",
		client: "Inter-American Development Bank",
		rows:   ".views-element-container tbody a",
		listing: Listing{
			Kind:   PaginateOffset,
			Offset: OffsetPaginator{Template: "https://www.iadb.org/en/project-search?page={n}"},
		},
	}}
}

func (s *idb) Extract(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
	doc := snapshot(ctx, page)
	f := models.ScrapedFields{URL: url, Client: s.client}

	f.Title = field(s.id, "title", func() (string, error) { return metaContent(doc, "og:title") })
	f.Country = field(s.id, "country", func() (string, error) { return nthText(doc, idbStats, 0) })
	f.Deadline = field(s.id, "deadline", func() (string, error) { return nthText(doc, idbStats, 2) })
	f.Sector = field(s.id, "sector", func() (string, error) { return nthText(doc, idbStats, 5) })
	f.Budget = field(s.id, "budget", func() (string, error) { return nthText(doc, idbStats, 12) })
	f.Summary = field(s.id, "summary", func() (string, error) { return textOf(doc, "idb-styled-text") })
	return f
}
