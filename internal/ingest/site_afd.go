package ingest

import (
	"context"

	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/models"
)

type afd struct {
	site
}

func newAFD() *afd {
	return &afd{site{
		id:     "afd",
		client: "French Development Agency",
		rows:   ".fr-card__link",
		listing: Listing{
			Kind:   PaginateOffset,
			Offset: OffsetPaginator{Template: "https://www.afd.fr/en/projects/list?page={n}"},
		},
	}}
}

// Extract reads the project fact sheet, a <dl> whose entries keep a stable
// order: 1 deadline, 3 budget, 4 country, 5 sector.
func (s *afd) Extract(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
	doc := snapshot(ctx, page)
	f := models.ScrapedFields{URL: url, Client: s.client}

	f.Title = field(s.id, "title", func() (string, error) { return metaContent(doc, "og:title") })
	f.Deadline = field(s.id, "deadline", func() (string, error) { return nthText(doc, "dd", 1) })
	f.Budget = field(s.id, "budget", func() (string, error) { return nthText(doc, "dd", 3) })
	f.Country = field(s.id, "country", func() (string, error) { return nthText(doc, "dd", 4) })
	f.Sector = field(s.id, "sector", func() (string, error) { return nthText(doc, "dd", 5) })
	f.Summary = field(s.id, "summary", func() (string, error) { return joinText(doc, ".my-8.print-para-space") })
	return f
}
