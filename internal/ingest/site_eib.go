package ingest

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/david/procurement-scout/internal/ai"
	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/models"
)

type eib struct {
	site
}

func newEIB() *eib {
	rows := ".search-filter__results .row-title a"
	return &eib{site{
		id:     "eib",
		client: "European Investment Bank",
		rows:   rows,
		listing: Listing{
			Kind:     PaginateClick,
			StartURL: "https://www.eib.org/en/projects/pipelines/index.htm",
			Click: ClickPaginator{
				Next: []string{"span.fa.fa-arrow-right"},
				Rows: rows,
			},
		},
	}}
}

func (s *eib) Extract(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
	doc := snapshot(ctx, page)
	f := models.ScrapedFields{URL: url, Client: s.client, Program: "Not defined"}

	f.Title = field(s.id, "title", func() (string, error) {
		return textOf(doc, ".eib-typography__title")
	})
	f.Country = field(s.id, "country", func() (string, error) {
		list, err := within(doc, "#pipeline-overview", ".bulleted-list--blue", 0)
		if err != nil {
			return "", err
		}
		return childText(list, "a")
	})
	f.Sector = field(s.id, "sector", func() (string, error) {
		list, err := within(doc, "#pipeline-overview", ".bulleted-list--blue", 1)
		if err != nil {
			return "", err
		}
		return childText(list, "a")
	})
	f.Budget = field(s.id, "budget", func() (string, error) {
		amount := doc.Find(".totalAmount").First()
		if amount.Length() == 0 {
			return "", errNoMatch
		}
		return normalizeSpace(amount.Next().Text()), nil
	})
	f.Summary = field(s.id, "summary", func() (string, error) {
		content, err := textOf(doc, "#content")
		if err != nil {
			return "", err
		}
		return d.askWith(ctx, ai.DetailedSummaryPrompt, content)
	})
	f.Deadline = field(s.id, "deadline", func() (string, error) {
		var out string
		spans := doc.Find(".pipeline-ref span")
		spans.EachWithBreak(func(i int, sp *goquery.Selection) bool {
			if normalizeSpace(sp.Text()) == "Release date:" {
				out = normalizeSpace(spans.Eq(i + 1).Text())
				return false
			}
			return true
		})
		if out == "" {
			return "", errNoMatch
		}
		return out, nil
	})
	return f
}
