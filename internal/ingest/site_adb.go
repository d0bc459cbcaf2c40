package ingest

import (
	"context"
	"time"

	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/models"
)

// adb sits behind a Cloudflare challenge, which the pipeline handles before
// enumeration. The terms of reference open in a panel behind #lnk_tor.
type adb struct {
	site
}

func newADB() *adb {
	return &adb{site{
		id:     "adb",
		client: "Asian Development Bank",
		rows:   ".views-element-container .list .item.linked .item-title a",
		listing: Listing{
			Kind:   PaginateOffset,
			Offset: OffsetPaginator{Template: "https://www.adb.org/projects/tenders?page={n}"},
		},
	}}
}

func (s *adb) Extract(ctx context.Context, d *Deps, page browser.Page, url string) models.ScrapedFields {
	doc := snapshot(ctx, page)
	f := models.ScrapedFields{URL: url, Client: s.client}

	f.Title = field(s.id, "title", func() (string, error) { return textOf(doc, ".x1f") })
	f.Country = field(s.id, "country", func() (string, error) { return textOf(doc, "#mstCtryOfAssignAll__xc_") })
	f.Budget = field(s.id, "budget", func() (string, error) { return textOf(doc, "#rlConsultingBudget") })
	f.Deadline = field(s.id, "deadline", func() (string, error) {
		return textOf(doc, "[id='POATable:POAEndDateInput:0']")
	})

	tor := field(s.id, "terms of reference", func() (string, error) {
		if err := page.Click(ctx, "#lnk_tor"); err != nil {
			return "", err
		}
		if err := page.WaitElement(ctx, "#slTor", 10*time.Second); err != nil {
			return "", err
		}
		return textOf(snapshot(ctx, page), "#slTor")
	})
	f.Sector = field(s.id, "sector", func() (string, error) { return d.ask(ctx, "applied sector", tor) })
	f.Summary = field(s.id, "summary", func() (string, error) { return d.ask(ctx, "summary", tor) })
	return f
}
