// Package browsertest provides HTML-backed doubles of the browser types.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/david/procurement-scout/internal/browser"
	"github.com/ysmood/gson"
)

// Page answers selector queries from its current HTML with goquery.
// Present overrides lookups for any selector, XPath included.
type Page struct {
	mu sync.Mutex

	Doc     string
	PageURL string

	// Pages maps a URL to the HTML Navigate loads.
	Pages       map[string]string
	NavigateErr map[string]error
	Present     map[string]bool
	Frames      map[string]*Page
	OnClick     map[string]func(p *Page) error
	EvalFunc    func(js string, args ...interface{}) (interface{}, error)

	Navigations []string
	Clicks      []string
}

func NewPage(html string) *Page {
	return &Page{Doc: html}
}

func (p *Page) SetDoc(html string) {
	p.mu.Lock()
	p.Doc = html
	p.mu.Unlock()
}

func (p *Page) doc() (*goquery.Document, error) {
	p.mu.Lock()
	html := p.Doc
	p.mu.Unlock()
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (p *Page) find(selector string) (*goquery.Selection, bool) {
	p.mu.Lock()
	forced, ok := p.Present[selector]
	p.mu.Unlock()
	if ok {
		return nil, forced
	}
	if strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, "(") {
		return nil, false
	}
	doc, err := p.doc()
	if err != nil {
		return nil, false
	}
	sel := doc.Find(selector)
	return sel, sel.Length() > 0
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Navigations = append(p.Navigations, url)
	if err := p.NavigateErr[url]; err != nil {
		return err
	}
	if html, ok := p.Pages[url]; ok {
		p.Doc = html
	}
	p.PageURL = url
	return nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Doc, nil
}

func (p *Page) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	if p.EvalFunc == nil {
		return gson.New(true), nil
	}
	v, err := p.EvalFunc(js, args...)
	return gson.New(v), err
}

func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	_, ok := p.find(selector)
	return ok, nil
}

func (p *Page) Visible(ctx context.Context, selector string) (bool, error) {
	return p.Exists(ctx, selector)
}

func (p *Page) WaitElement(ctx context.Context, selector string, timeout time.Duration) error {
	if _, ok := p.find(selector); !ok {
		return fmt.Errorf("wait for %s: %w", selector, browser.ErrNoElement)
	}
	return nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	sel, ok := p.find(selector)
	if !ok || sel == nil {
		return "", fmt.Errorf("%w: %s", browser.ErrNoElement, selector)
	}
	return strings.TrimSpace(sel.First().Text()), nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	p.Clicks = append(p.Clicks, selector)
	hook := p.OnClick[selector]
	p.mu.Unlock()

	if hook != nil {
		return hook(p)
	}
	if _, ok := p.find(selector); !ok {
		return fmt.Errorf("%w: %s", browser.ErrNoElement, selector)
	}
	return nil
}

func (p *Page) Frame(ctx context.Context, selector string) (browser.Page, error) {
	p.mu.Lock()
	fr := p.Frames[selector]
	p.mu.Unlock()
	if fr == nil {
		return nil, fmt.Errorf("%w: %s", browser.ErrNoElement, selector)
	}
	return fr, nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PageURL
}

// Session is a fake browser whose tabs load HTML from TabPages.
type Session struct {
	*Page

	TabPages map[string]string
	// TabSetup customises each tab before it is returned.
	TabSetup func(t *Page)
	TabErr   error

	mu         sync.Mutex
	open       int
	TabsOpened int
	Focuses    int
	Closed     bool
}

func NewSession(main *Page) *Session {
	if main == nil {
		main = NewPage("")
	}
	return &Session{Page: main, TabPages: map[string]string{}}
}

func (s *Session) NewTab(ctx context.Context) (browser.Tab, error) {
	if s.TabErr != nil {
		return nil, s.TabErr
	}
	t := &Tab{Page: &Page{Pages: s.TabPages}, session: s}
	if s.TabSetup != nil {
		s.TabSetup(t.Page)
	}
	s.mu.Lock()
	s.open++
	s.TabsOpened++
	s.mu.Unlock()
	return t, nil
}

func (s *Session) Focus(ctx context.Context) error {
	s.mu.Lock()
	s.Focuses++
	s.mu.Unlock()
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	s.Closed = true
	s.mu.Unlock()
	return nil
}

// OpenTabs is the number of tabs opened and not yet closed.
func (s *Session) OpenTabs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

type Tab struct {
	*Page
	session *Session
	closed  bool
}

func (t *Tab) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.session.mu.Lock()
	t.session.open--
	t.session.mu.Unlock()
	return nil
}

// Launcher hands out sessions built by New and remembers them.
type Launcher struct {
	New func() *Session
	Err error

	mu     sync.Mutex
	Opened []*Session
}

func (l *Launcher) Open(ctx context.Context) (browser.Session, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	s := l.New()
	l.mu.Lock()
	l.Opened = append(l.Opened, s)
	l.mu.Unlock()
	return s, nil
}

// AllClosed reports whether every handed-out session was closed.
func (l *Launcher) AllClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.Opened {
		if !s.Closed {
			return false
		}
	}
	return true
}
