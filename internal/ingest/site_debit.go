package ingest

import (
	"context"
	"log"

	"github.com/PuerkitoBio/goquery"
	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/models"
)

const debitShowMore = "//section[@id='abstract']//div[contains(@class,'container')]/div[contains(@class,'row')][2]" +
	"//div[contains(@class,'_loop_lead_paragraph_sm')]//a"

// debit mirrors World Bank project pages, so its detail layout matches.
type debit struct {
	site
}

func newDeBIT() *debit {
	rows := ".view-content .field-content a"
	return &debit{site{
		id:     "debit",
		client: "Development Bank",
		rows:   rows,
		listing: Listing{
			Kind:     PaginateClick,
			StartURL: "https://debit.datascience.uchicago.edu/database",
			Click: ClickPaginator{
				Next: []string{"//span[@class='sr-only' and text()='Next']"},
				Rows: rows,
			},
		},
	}}
}

func (s *debit) Extract(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
	doc := snapshot(ctx, page)
	f := models.ScrapedFields{URL: url, Client: s.client}

	f.Title = field(s.id, "title", func() (string, error) { return textOf(doc, "#projects-title") })
	f.Country = field(s.id, "country", func() (string, error) {
		// Several country links may appear; the last non-blank one wins.
		var country string
		doc.Find("a.dropdown-item[href*='/country/']").Each(func(_ int, a *goquery.Selection) {
			if t := normalizeSpace(a.Text()); t != "" {
				country = t
			}
		})
		if country == "" {
			return "", errNoMatch
		}
		return country, nil
	})
	f.Budget = field(s.id, "budget", func() (string, error) {
		ul, err := within(doc, ".main-detail", "ul", 3)
		if err != nil {
			return "", err
		}
		return childText(ul.Find("li").First(), "p")
	})
	f.Sector = field(s.id, "sector", func() (string, error) {
		ul, err := within(doc, ".main-detail", "ul", 2)
		if err != nil {
			return "", err
		}
		li := ul.Find("li")
		if li.Length() < 2 {
			return "", errNoMatch
		}
		return childText(li.Eq(1), "p")
	})
	f.Deadline = field(s.id, "deadline", func() (string, error) {
		row, err := within(doc, ".main-detail", ".row", 4)
		if err != nil {
			return "", err
		}
		li := row.Find("li")
		if li.Length() < 3 {
			return "", errNoMatch
		}
		return childText(li.Eq(2), "p")
	})

	if err := page.Click(ctx, debitShowMore); err != nil {
		log.Printf("[Scraper %s] show more: %v", s.id, err)
	}
	f.Summary = field(s.id, "summary", func() (string, error) {
		row, err := within(snapshot(ctx, page), "#abstract .container", ".row", 1)
		if err != nil {
			return "", err
		}
		lead := row.Find("._loop_lead_paragraph_sm").First()
		if lead.Length() == 0 {
			return "", errNoMatch
		}
		return firstTextNode(lead), nil
	})
	return f
}
