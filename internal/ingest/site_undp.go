package ingest

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/models"
)

type undp struct {
	site
}

func newUNDP() *undp {
	rows := ".vacanciesTable a"
	return &undp{site{
		id:     "undp",
		client: "United Nations Development Programme",
		rows:   rows,
		listing: Listing{
			Kind:     PaginateClick,
			StartURL: "https://procurement-notices.undp.org",
			Click: ClickPaginator{
				Next: []string{
					"//a[normalize-space(.)='Next']",
					"//a[contains(text(), 'Next')]",
					"//button[contains(text(), 'Next')]",
					".pagination a[aria-label='Next']",
					".pagination .next",
					"[class*='next']",
					"[class*='pagination'] a:last-child",
					"//a[contains(@class, 'next')]",
				},
				Rows: rows,
			},
		},
	}}
}

func (s *undp) Extract(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
	doc := snapshot(ctx, page)
	f := models.ScrapedFields{URL: url, Client: s.client}

	f.Title = field(s.id, "title", func() (string, error) {
		return textOf(doc, "nav.breadcrumb ul li:nth-of-type(2)")
	})
	f.Country = field(s.id, "country", func() (string, error) {
		return textOf(doc, ".postMetadata .postMetadata__category:first-of-type p")
	})
	f.Deadline = field(s.id, "deadline", func() (string, error) {
		return textOf(doc, ".postMetadata .postMetadata__category:nth-of-type(2) p")
	})
	f.Summary = field(s.id, "summary", func() (string, error) {
		var parts []string
		doc.Find(".cell.large-8.medium-offset-1.medium-10.postContent").Each(func(_ int, c *goquery.Selection) {
			if t := normalizeSpace(c.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		if len(parts) == 0 {
			return "", errNoMatch
		}
		return strings.Join(parts, " "), nil
	})
	return f
}
