package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestField_IsolatesFailures(t *testing.T) {
	got := field("test", "ok", func() (string, error) { return "  Kenya  ", nil })
	if got != "Kenya" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	if got := field("test", "err", func() (string, error) { return "partial", errors.New("boom") }); got != "" {
		t.Fatalf("expected empty value on error, got %q", got)
	}
	if got := field("test", "panic", func() (string, error) {
		var s []string
		return s[3], nil
	}); got != "" {
		t.Fatalf("expected empty value on panic, got %q", got)
	}
}

func TestPositionalHelpers(t *testing.T) {
	doc := mustDoc(t, `<dl><dd>a</dd><dd> b  c </dd></dl>
		<div class="main-detail"><ul><li><p>one</p></li></ul><ul><li><p>two</p></li><li><p>three</p></li></ul></div>`)

	if got, err := nthText(doc, "dd", 1); err != nil || got != "b c" {
		t.Fatalf("nthText = %q, %v", got, err)
	}
	if _, err := nthText(doc, "dd", 5); !errors.Is(err, errNoMatch) {
		t.Fatalf("expected errNoMatch, got %v", err)
	}

	ul, err := within(doc, ".main-detail", "ul", 1)
	if err != nil {
		t.Fatalf("within: %v", err)
	}
	if got, _ := childText(ul.Find("li").Eq(1), "p"); got != "three" {
		t.Fatalf("childText = %q", got)
	}
	if _, err := within(doc, ".missing", "ul", 0); !errors.Is(err, errNoMatch) {
		t.Fatalf("expected errNoMatch for missing container, got %v", err)
	}
}

func TestFirstTextNode_SkipsChildElements(t *testing.T) {
	doc := mustDoc(t, `<div class="lead">  <a>Show more</a> The project finances rural roads. <span>hidden</span></div>`)
	if got := firstTextNode(doc.Find(".lead")); got != "The project finances rural roads." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestAbsoluteURL(t *testing.T) {
	tests := []struct {
		base, href, want string
	}{
		{"https://bank.example/list?page=0", "/p/42", "https://bank.example/p/42"},
		{"https://bank.example/list", "detail.htm#top", "https://bank.example/detail.htm"},
		{"https://bank.example/", "https://other.example/x", "https://other.example/x"},
		{"https://bank.example/", "#", ""},
		{"https://bank.example/", "javascript:void(0)", ""},
	}
	for _, tt := range tests {
		if got := absoluteURL(tt.base, tt.href); got != tt.want {
			t.Errorf("absoluteURL(%q, %q) = %q, want %q", tt.base, tt.href, got, tt.want)
		}
	}
}
