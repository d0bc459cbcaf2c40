package ingest

import (
	"context"

	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/models"
)

type miga struct {
	site
}

func newMIGA() *miga {
	return &miga{site{
		id:     "miga",
		client: "Multilateral Investment Guarantee Agency",
		rows:   ".teaser-list.view.view-featured-projects .view-content .page-title a",
		listing: Listing{
			Kind:   PaginateOffset,
			Offset: OffsetPaginator{Template: "https://www.miga.org/projects/list?page={n}"},
		},
	}}
}

// MIGA project pages are free prose, so the LLM reads every field.
func (s *miga) Extract(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
	doc := snapshot(ctx, page)
	text := field(s.id, "content", func() (string, error) { return textOf(doc, ".paragraph__column") })

	f := d.askAll(ctx, s.id, text, nil)
	f.URL = url
	f.Client = s.client
	return f
}
