package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/david/procurement-scout/internal/ai"
	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/models"
)

const ifcContainer = ".container.project-detail.padding-large0"

var ifcHints = map[string]string{
	"title":   "First sentence before `back to search` is project title.",
	"country": "Country is next of `Country` word.",
	"summary": "detailed",
}

// ifc renders each disclosure client side; every field is read by the LLM
// from the detail container.
type ifc struct {
	site
}

func newIFC() *ifc {
	rows := ".row.margin-top15.projects .col-12.padding-top5 a"
	return &ifc{site{
		id:     "ifc",
		client: "International Finance Corporation",
		rows:   rows,
		listing: Listing{
			Kind:     PaginateClick,
			StartURL: "https://disclosures.ifc.org/enterprise-search-results-home?f_type_description=Investment",
			Click: ClickPaginator{
				Next: []string{"span.fa.fa-chevron-right"},
				Rows: rows,
			},
		},
	}}
}

func (s *ifc) Extract(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
	text := field(s.id, "container", func() (string, error) {
		if err := page.WaitElement(ctx, ifcContainer, 30*time.Second); err != nil {
			return "", err
		}
		sel := snapshot(ctx, page).Find(ifcContainer).First()
		if sel.Length() == 0 {
			return "", fmt.Errorf("%w: %s", errNoMatch, ifcContainer)
		}
		html, err := goquery.OuterHtml(sel)
		if err != nil {
			return "", err
		}
		return ai.HTMLToText(html), nil
	})

	f := d.askAll(ctx, s.id, text, ifcHints)
	f.URL = url
	f.Client = s.client
	return f
}
