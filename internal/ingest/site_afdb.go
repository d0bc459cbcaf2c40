package ingest

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/models"
)

const (
	afdbViewerMinText = 50
	afdbViewerTimeout = 30 * time.Second
)

// afdb publishes notices as PDFs rendered by an embedded pdf.js viewer, so
// every field comes from the LLM over the rendered text.
type afdb struct {
	site
}

func newAfDB() *afdb {
	return &afdb{site{
		id:     "afdb",
		client: "African Development Bank",
		rows:   ".view-content .field-content a",
		listing: Listing{
			Kind: PaginateOffset,
			Offset: OffsetPaginator{
				Template: "https://www.afdb.org/en/projects-and-operations/procurement?page={n}",
			},
		},
	}}
}

func (s *afdb) Extract(ctx context.Context, d *Deps, page browser.Page, detailURL string) models.ScrapedFields {
	text, err := s.documentText(ctx, d, page)
	if err != nil {
		log.Printf("[Scraper %s] no document text for %s: %v", s.id, detailURL, err)
	}
	f := d.askAll(ctx, s.id, text, nil)
	f.URL = detailURL
	f.Client = s.client
	return f
}

// documentText reads the viewer once it has rendered, falling back to
// downloading the PDF itself.
func (s *afdb) documentText(ctx context.Context, d *Deps, page browser.Page) (string, error) {
	if err := page.WaitElement(ctx, "iframe.pdf", 20*time.Second); err != nil {
		return "", fmt.Errorf("no pdf viewer: %w", err)
	}

	frame, err := page.Frame(ctx, "iframe.pdf")
	if err == nil {
		var text string
		rendered := d.pollUntil(ctx, afdbViewerTimeout, time.Second, func() bool {
			t, err := frame.Text(ctx, "#viewer")
			if err != nil {
				return false
			}
			text = normalizeSpace(t)
			return len(text) > afdbViewerMinText
		})
		if rendered {
			return text, nil
		}
		log.Printf("[Scraper %s] viewer did not render within %s, downloading pdf", s.id, afdbViewerTimeout)
	}

	src, err := attrOf(snapshot(ctx, page), "iframe.pdf", "src")
	if err != nil {
		return "", err
	}
	pdfURL := viewerFileURL(absoluteURL(page.URL(), src))
	if pdfURL == "" {
		return "", fmt.Errorf("cannot resolve pdf from %q", src)
	}
	return fetchPDFText(ctx, d.Fetcher, pdfURL)
}

// viewerFileURL unwraps pdf.js viewer links of the form viewer.html?file=<pdf>.
func viewerFileURL(src string) string {
	u, err := url.Parse(src)
	if err != nil || src == "" {
		return ""
	}
	if file := u.Query().Get("file"); file != "" {
		return absoluteURL(src, file)
	}
	return src
}
