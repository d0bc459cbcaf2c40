package ingest

import (
	"context"
	"log"

	"github.com/PuerkitoBio/goquery"
	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/models"
)

const worldBankDetailBase = "https://projects.worldbank.org/en/projects-operations/project-detail/"

const worldBankSectorPrompt = "I will upload development objective. Plz analyze it and then give me sector of development objective only. " +
	"Output must be only sector without any comment and prefix such as `sector:`"

type worldBank struct {
	site
}

func newWorldBank() *worldBank {
	return &worldBank{site{
		id:     "worldbank",
		client: "World Bank",
		rows:   "tr.ng-tns-c1-0.ng-star-inserted",
		listing: Listing{
			Kind: PaginateOffset,
			Offset: OffsetPaginator{
				Template: "https://projects.worldbank.org/en/projects-operations/projects-list?os={n}",
				Step:     20,
			},
		},
	}}
}

// Enumerate builds detail URLs from the project id in the third column;
// the listing rows carry no usable links.
func (s *worldBank) Enumerate(ctx context.Context, d *Deps, page browser.Page) ([]string, error) {
	if err := page.WaitElement(ctx, s.rows, d.listingTimeout()); err != nil {
		log.Printf("[Scraper %s] no project rows on %s", s.id, page.URL())
		return nil, nil
	}
	doc := snapshot(ctx, page)
	var links []string
	doc.Find(s.rows).Each(func(_ int, row *goquery.Selection) {
		id := normalizeSpace(row.Find("td").Eq(2).Text())
		if id != "" {
			links = append(links, worldBankDetailBase+id)
		}
	})
	return dedupe(links), nil
}

func (s *worldBank) Extract(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
	doc := snapshot(ctx, page)
	f := models.ScrapedFields{URL: url, Client: s.client}

	f.Title = field(s.id, "title", func() (string, error) {
		return textOf(doc, "#projects-title")
	})
	f.Country = field(s.id, "country", func() (string, error) {
		return textOf(doc, ".detail-download-section .main-detail a")
	})
	f.Budget = field(s.id, "budget", func() (string, error) {
		ul, err := within(doc, ".main-detail", "ul", 3)
		if err != nil {
			return "", err
		}
		return childText(ul.Find("li").First(), "p")
	})
	f.Sector = field(s.id, "sector", func() (string, error) {
		objective, err := textOf(doc, "#development-objective")
		if err != nil {
			return "", err
		}
		return d.askWith(ctx, worldBankSectorPrompt, objective)
	})
	f.Deadline = field(s.id, "deadline", func() (string, error) {
		row, err := within(doc, ".main-detail", ".row", 3)
		if err != nil {
			return "", err
		}
		li := row.Find("li")
		if li.Length() < 4 {
			return "", errNoMatch
		}
		return childText(li.Eq(3), "p")
	})

	// The abstract is collapsed behind a "show more" link; without one the
	// development objective stands in for the summary.
	f.Summary = field(s.id, "summary", func() (string, error) {
		if ok, _ := page.Exists(ctx, "#abstract a"); ok {
			if err := page.Click(ctx, "#abstract a"); err == nil {
				expanded := snapshot(ctx, page)
				if row, err := within(expanded, "#abstract .container", ".row", 1); err == nil {
					return normalizeSpace(row.Text()), nil
				}
			}
		}
		return textOf(doc, "#development-objective")
	})
	return f
}
