package ingest

import (
	"context"

	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/models"
)

type kfw struct {
	site
}

func newKfW() *kfw {
	return &kfw{site{
		id:     "kfw",
		client: "KfW Development Bank",
		rows:   ".search-result-content--default .search-result-item .title a",
		listing: Listing{
			Kind: PaginateOffset,
			Offset: OffsetPaginator{
				Template: "https://www.kfw-entwicklungsbank.de/Internationale-Finanzierung/KfW-Entwicklungsbank/Projekte/Projektdatenbank/index.jsp" +
					"?query=*%3A*&page={n}&rows=10&sortBy=relevance&sortOrder=desc&facet.filter.language=de&dymFailover=true&groups=1",
			},
		},
	}}
}

// KfW detail pages are a single key/value table; projects carry no deadline.
func (s *kfw) Extract(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
	doc := snapshot(ctx, page)
	f := models.ScrapedFields{URL: url, Client: s.client}

	f.Title = field(s.id, "title", func() (string, error) { return textOf(doc, ".hl-1") })
	f.Country = field(s.id, "country", func() (string, error) { return textOf(doc, "table tr:first-of-type td") })
	f.Sector = field(s.id, "sector", func() (string, error) { return textOf(doc, "table tr:nth-of-type(4) td") })
	f.Budget = field(s.id, "budget", func() (string, error) { return textOf(doc, "table tr:nth-of-type(8) td") })
	f.Program = field(s.id, "program", func() (string, error) { return textOf(doc, "table tr:nth-of-type(11) td") })
	f.Summary = field(s.id, "summary", func() (string, error) { return textOf(doc, ".text-image-text") })
	return f
}
