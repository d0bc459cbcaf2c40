package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/david/procurement-scout/internal/ai"
	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/models"
)

var errNoMatch = errors.New("no match")

// field runs one extraction step. Errors and panics produce "" for this
// field only; the rest of the record is unaffected.
func field(siteID, name string, fn func() (string, error)) (out string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Scraper %s] field %s panicked: %v", siteID, name, r)
			out = ""
		}
	}()

	v, err := fn()
	if err != nil {
		log.Printf("[Scraper %s] field %s: %v", siteID, name, err)
		return ""
	}
	return strings.TrimSpace(v)
}

// snapshot parses the page's current HTML. A failed read yields an empty
// document so selector helpers report no match instead of crashing.
func snapshot(ctx context.Context, page browser.Page) *goquery.Document {
	html, err := page.HTML(ctx)
	if err != nil {
		log.Printf("[Scraper] read html of %s: %v", page.URL(), err)
		html = ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	return doc
}

func textOf(doc *goquery.Document, selector string) (string, error) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", errNoMatch, selector)
	}
	return normalizeSpace(sel.Text()), nil
}

// nthText returns the text of the n-th (0-based) match of selector.
func nthText(doc *goquery.Document, selector string, n int) (string, error) {
	sel := doc.Find(selector)
	if n < 0 || n >= sel.Length() {
		return "", fmt.Errorf("%w: %s[%d] of %d", errNoMatch, selector, n, sel.Length())
	}
	return normalizeSpace(sel.Eq(n).Text()), nil
}

func nthSel(doc *goquery.Document, selector string, n int) (*goquery.Selection, error) {
	sel := doc.Find(selector)
	if n < 0 || n >= sel.Length() {
		return nil, fmt.Errorf("%w: %s[%d] of %d", errNoMatch, selector, n, sel.Length())
	}
	return sel.Eq(n), nil
}

func attrOf(doc *goquery.Document, selector, attr string) (string, error) {
	v, ok := doc.Find(selector).First().Attr(attr)
	if !ok {
		return "", fmt.Errorf("%w: %s@%s", errNoMatch, selector, attr)
	}
	return strings.TrimSpace(v), nil
}

// joinText concatenates the text of every match, one per line.
func joinText(doc *goquery.Document, selector string) (string, error) {
	var parts []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if t := normalizeSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %s", errNoMatch, selector)
	}
	return strings.Join(parts, "\n"), nil
}

func metaContent(doc *goquery.Document, property string) (string, error) {
	return attrOf(doc, fmt.Sprintf("meta[property='%s']", property), "content")
}

// ask sends text to the configured extractor with the single-field prompt.
func (d *Deps) ask(ctx context.Context, fieldName, text string) (string, error) {
	return d.askWith(ctx, ai.FieldPrompt(fieldName), text)
}

// enumerateLinks waits for rows and collects the href of each row, or of
// the first anchor inside it when the row is not itself a link.
func enumerateLinks(ctx context.Context, d *Deps, page browser.Page, rows string) ([]string, error) {
	if err := page.WaitElement(ctx, rows, d.listingTimeout()); err != nil {
		log.Printf("[Scraper] no listing rows %q on %s", rows, page.URL())
		return nil, nil
	}

	base := page.URL()
	doc := snapshot(ctx, page)
	var links []string
	doc.Find(rows).Each(func(_ int, s *goquery.Selection) {
		a := s
		if goquery.NodeName(s) != "a" {
			a = s.Find("a[href]").First()
		}
		if href, ok := a.Attr("href"); ok {
			links = append(links, absoluteURL(base, href))
		}
	})
	return dedupe(links), nil
}

const (
	defaultListingTimeout = 20 * time.Second
	defaultClickTimeout   = 15 * time.Second
)

func (d *Deps) listingTimeout() time.Duration {
	if d == nil || d.ListingTimeout <= 0 {
		return defaultListingTimeout
	}
	return d.ListingTimeout
}

func (d *Deps) clickTimeout() time.Duration {
	if d == nil || d.ClickTimeout <= 0 {
		return defaultClickTimeout
	}
	return d.ClickTimeout
}

// within returns the n-th match of sel inside the first match of container.
func within(doc *goquery.Document, container, sel string, n int) (*goquery.Selection, error) {
	root := doc.Find(container).First()
	if root.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", errNoMatch, container)
	}
	found := root.Find(sel)
	if n < 0 || n >= found.Length() {
		return nil, fmt.Errorf("%w: %s %s[%d] of %d", errNoMatch, container, sel, n, found.Length())
	}
	return found.Eq(n), nil
}

// childText is the normalized text of the first sel under s.
func childText(s *goquery.Selection, sel string) (string, error) {
	child := s.Find(sel).First()
	if child.Length() == 0 {
		return "", fmt.Errorf("%w: %s", errNoMatch, sel)
	}
	return normalizeSpace(child.Text()), nil
}

// firstTextNode returns the first non-blank text node directly under s,
// ignoring text inside child elements such as "show more" links.
func firstTextNode(s *goquery.Selection) string {
	var out string
	s.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if goquery.NodeName(c) != "#text" {
			return true
		}
		if t := normalizeSpace(c.Text()); t != "" {
			out = t
			return false
		}
		return true
	})
	return out
}

// pollUntil evaluates cond until it holds or timeout elapses, using the
// waiter's clock so tests can drive it.
func (d *Deps) pollUntil(ctx context.Context, timeout, interval time.Duration, cond func() bool) bool {
	now := time.Now
	sleep := func(dur time.Duration) {
		t := time.NewTimer(dur)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
	if d != nil && d.Waiter != nil {
		if d.Waiter.Now != nil {
			now = d.Waiter.Now
		}
		if d.Waiter.Sleep != nil {
			sleep = d.Waiter.Sleep
		}
	}

	deadline := now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if ctx.Err() != nil || !now().Before(deadline) {
			return false
		}
		sleep(interval)
	}
}

// askAll fills every descriptive field from one blob of text, one prompt
// per field. hints are appended to the named field's prompt.
func (d *Deps) askAll(ctx context.Context, siteID, text string, hints map[string]string) models.ScrapedFields {
	prompt := func(name, base string) string {
		if h := hints[name]; h != "" {
			return base + " " + h
		}
		return base
	}
	run := func(name, systemPrompt string) string {
		return field(siteID, name, func() (string, error) {
			return d.askWith(ctx, systemPrompt, text)
		})
	}

	summary := ai.FieldPrompt("summary")
	if hints["summary"] == "detailed" {
		summary = ai.DetailedSummaryPrompt
	}
	return models.ScrapedFields{
		Title:    run("title", prompt("title", ai.FieldPrompt("project title"))),
		Country:  run("country", prompt("country", ai.FieldPrompt("applied country"))),
		Budget:   run("budget", ai.BudgetPrompt),
		Sector:   run("sector", prompt("sector", ai.FieldPrompt("applied sector"))),
		Summary:  run("summary", summary),
		Deadline: run("deadline", prompt("deadline", ai.FieldPrompt("last deadline date"))),
		Program:  run("program", prompt("program", ai.FieldPrompt("related program and project"))),
	}
}

// askWith sends text with a site-specific prompt.
func (d *Deps) askWith(ctx context.Context, systemPrompt, text string) (string, error) {
	if d == nil || d.LLM == nil {
		return "", errors.New("no llm configured")
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("nothing to analyse")
	}
	return d.LLM.Extract(ctx, systemPrompt, text)
}
