package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	rpdf "rsc.io/pdf"
)

// extractPDFText concatenates the text runs of every page. The parser
// panics on some malformed files, which is reported as an error.
func extractPDFText(content []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			builder.WriteString(fragment.S)
			builder.WriteString(" ")
		}
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

// fetchPDFText downloads url and returns its text.
func fetchPDFText(ctx context.Context, f Fetcher, url string) (string, error) {
	if f == nil {
		return "", fmt.Errorf("no fetcher configured")
	}
	body, contentType, err := f.Fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("pdf download: %w", err)
	}
	if !bytes.HasPrefix(body, []byte("%PDF")) && !strings.Contains(contentType, "pdf") {
		return "", fmt.Errorf("not a pdf: %s", contentType)
	}
	text, err := extractPDFText(body)
	if err != nil {
		return "", fmt.Errorf("pdf text extraction failed: %w", err)
	}
	return normalizeSpace(text), nil
}
