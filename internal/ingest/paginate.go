package ingest

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/david/procurement-scout/internal/browser"
)

// OffsetPaginator renders listing URLs where the page is a query parameter.
// Template holds "{n}", replaced by Start + page*Step.
type OffsetPaginator struct {
	Template string
	Start    int
	Step     int
}

func (o OffsetPaginator) URL(page int) string {
	step := o.Step
	if step == 0 {
		step = 1
	}
	return strings.ReplaceAll(o.Template, "{n}", strconv.Itoa(o.Start+page*step))
}

// ClickPaginator advances a listing in place by clicking its next control.
type ClickPaginator struct {
	Next   []string // candidate next controls, first visible wins
	Marker string   // element whose text names the current page, optional
	Rows   string   // listing rows, used for the result signature

	Timeout  time.Duration
	Interval time.Duration
	Now      func() time.Time
	Sleep    func(time.Duration)
}

// GenericNext covers the common "next page" controls.
var GenericNext = []string{
	"a[aria-label='Next']",
	".pagination .next a",
	".pagination .next",
	"li.pager__item--next a",
	"[class*='next']",
	"//a[normalize-space(.)='Next']",
}

func (c ClickPaginator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c ClickPaginator) sleep(ctx context.Context, d time.Duration) {
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// signature identifies the rows currently shown: count plus first href.
func (c ClickPaginator) signature(ctx context.Context, page browser.Page) string {
	if c.Rows == "" {
		return ""
	}
	doc := snapshot(ctx, page)
	rows := doc.Find(c.Rows)
	first := rows.First()
	href, ok := first.Attr("href")
	if !ok {
		href, _ = first.Find("a[href]").First().Attr("href")
	}
	if href == "" {
		href = normalizeSpace(first.Text())
	}
	return strconv.Itoa(rows.Length()) + "|" + href
}

func (c ClickPaginator) marker(ctx context.Context, page browser.Page) string {
	if c.Marker == "" {
		return ""
	}
	text, err := page.Text(ctx, c.Marker)
	if err != nil {
		return ""
	}
	return normalizeSpace(text)
}

// Advance clicks the next control and waits for the listing to change.
// It returns false when there is no next control or nothing changed in time.
func (c ClickPaginator) Advance(ctx context.Context, page browser.Page) bool {
	browser.DismissOverlays(ctx, page)

	next := ""
	for _, sel := range c.Next {
		if ok, _ := page.Visible(ctx, sel); ok {
			next = sel
			break
		}
	}
	if next == "" {
		log.Printf("[Paginate] no next control on %s", page.URL())
		return false
	}

	beforeMarker := c.marker(ctx, page)
	beforeSig := c.signature(ctx, page)

	if err := page.Click(ctx, next); err != nil {
		log.Printf("[Paginate] click %s failed: %v", next, err)
		return false
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultClickTimeout
	}
	interval := c.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	deadline := c.now().Add(timeout)
	for {
		if m := c.marker(ctx, page); beforeMarker != "" && m != "" && m != beforeMarker {
			return true
		}
		if sig := c.signature(ctx, page); sig != "" && sig != beforeSig && !strings.HasPrefix(sig, "0|") {
			return true
		}
		if ctx.Err() != nil || !c.now().Before(deadline) {
			log.Printf("[Paginate] listing did not change after clicking %s, treating as last page", next)
			return false
		}
		c.sleep(ctx, interval)
	}
}
