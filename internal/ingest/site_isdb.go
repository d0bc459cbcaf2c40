package ingest

import (
	"context"

	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/models"
)

const isdbBudgetPrompt = "I will upload contract content. Plz analyze it and then give me budget only. " +
	"Output must be only budget without any comment and prefix such as `budget:`. If budget is not specified, plz return `Not defined`"

type isdb struct {
	site
}

func newIsDB() *isdb {
	return &isdb{site{
		id:     "isdb",
		client: "Islamic Development Bank",
		rows:   ".block-isdb-index-view-results .views-row .container-huge .field-title a",
		listing: Listing{
			Kind:   PaginateOffset,
			Offset: OffsetPaginator{Template: "https://www.isdb.org/project-procurement/tenders?page={n}"},
		},
	}}
}

func (s *isdb) Extract(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
	doc := snapshot(ctx, page)
	f := models.ScrapedFields{URL: url, Client: s.client}

	// The tender description is a run of <p><strong>value</strong></p>
	// blocks; 7th is the country, 9th the sector.
	describe := func(n int) (string, error) {
		p, err := within(doc, ".field--name-field-description", "p", n)
		if err != nil {
			return "", err
		}
		return childText(p, "strong")
	}
	body, _ := textOf(doc, ".container .outer")

	f.Title = field(s.id, "title", func() (string, error) { return textOf(doc, ".field-title h1") })
	f.Country = field(s.id, "country", func() (string, error) { return describe(6) })
	f.Sector = field(s.id, "sector", func() (string, error) { return describe(8) })
	f.Budget = field(s.id, "budget", func() (string, error) { return d.askWith(ctx, isdbBudgetPrompt, body) })
	f.Summary = field(s.id, "summary", func() (string, error) { return d.ask(ctx, "summary", body) })
	f.Deadline = field(s.id, "deadline", func() (string, error) {
		return textOf(doc, ".field--name-field-close-date time")
	})
	return f
}
