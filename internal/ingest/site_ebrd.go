package ingest

import (
	"context"
	"log"

	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/models"
)

const ebrdOverviewTab = "#customtab-8dfd7f8cd9-item-f0008af8f1-tab"

// ebrd lists its projects on one page without pagination.
type ebrd struct {
	site
}

func newEBRD() *ebrd {
	return &ebrd{site{
		id:     "ebrd",
		client: "European Bank for Reconstruction and Development",
		rows:   ".search-result__result-card",
		listing: Listing{
			Kind:     PaginateSingle,
			StartURL: "https://www.ebrd.com/home/what-we-do/projects.html",
		},
	}}
}

func (s *ebrd) Extract(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
	f := models.ScrapedFields{URL: url, Client: s.client}

	f.Title = field(s.id, "title", func() (string, error) {
		return textOf(snapshot(ctx, page), ".hero-block__text-wrapper")
	})

	// The overview cards only render once their tab is selected.
	if err := page.Click(ctx, ebrdOverviewTab); err != nil {
		log.Printf("[Scraper %s] overview tab: %v", s.id, err)
	}
	doc := snapshot(ctx, page)

	const cards = ".project-overview__card-description"
	f.Country = field(s.id, "country", func() (string, error) { return nthText(doc, cards, 3) })
	f.Sector = field(s.id, "sector", func() (string, error) { return nthText(doc, cards, 4) })
	f.Deadline = field(s.id, "deadline", func() (string, error) { return nthText(doc, cards, 8) })
	f.Budget = field(s.id, "budget", func() (string, error) {
		details, err := nthSel(doc, ".text-block__details", 6)
		if err != nil {
			return "", err
		}
		return childText(details, "p")
	})
	f.Summary = field(s.id, "summary", func() (string, error) { return joinText(doc, ".mainbodytextunit") })
	return f
}
