package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/david/procurement-scout/internal/config"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// navigatorOverrides runs before any site script, after stealth.JS.
const navigatorOverrides = `() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
	Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
}`

// RodLauncher starts one isolated Chromium per Open call.
type RodLauncher struct {
	cfg config.BrowserConfig
}

func NewLauncher(cfg config.BrowserConfig) *RodLauncher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = config.DefaultUserAgent
	}
	return &RodLauncher{cfg: cfg}
}

func (l *RodLauncher) Open(ctx context.Context) (Session, error) {
	ln := launcher.New().
		Context(ctx).
		Headless(l.cfg.Headless).
		NoSandbox(true).
		Leakless(true)

	if l.cfg.BrowserBin != "" {
		ln = ln.Bin(l.cfg.BrowserBin)
	}
	if l.cfg.ProxyURL != "" {
		ln = ln.Proxy(l.cfg.ProxyURL)
	}

	ln.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	ln.Delete(flags.Flag("enable-automation"))
	ln.Set(flags.Flag("disable-popup-blocking"))
	ln.Set(flags.Flag("disable-dev-shm-usage"))
	ln.Set(flags.Flag("disable-extensions"))
	ln.Set(flags.Flag("no-first-run"))
	ln.Set(flags.Flag("window-size"), "1920,1080")

	controlURL, err := ln.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		ln.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	s := &rodSession{launcher: ln, browser: b, cfg: l.cfg}
	main, err := s.newPage()
	if err != nil {
		_ = b.Close()
		ln.Kill()
		return nil, err
	}
	s.rodPage = main
	track(s)

	log.Printf("[Browser] Session opened (headless=%v)", l.cfg.Headless)
	return s, nil
}

type rodSession struct {
	*rodPage
	launcher *launcher.Launcher
	browser  *rod.Browser
	cfg      config.BrowserConfig
	once     sync.Once
}

func (s *rodSession) newPage() (*rodPage, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		log.Printf("[Browser] stealth injection failed, continuing: %v", err)
	}
	if _, err := page.EvalOnNewDocument(navigatorOverrides); err != nil {
		log.Printf("[Browser] navigator overrides failed, continuing: %v", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.cfg.UserAgent}); err != nil {
		log.Printf("[Browser] set user agent failed: %v", err)
	}
	return &rodPage{page: page, timeout: s.cfg.PageTimeout}, nil
}

func (s *rodSession) NewTab(ctx context.Context) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.newPage()
	if err != nil {
		return nil, err
	}
	return &rodTab{rodPage: p}, nil
}

func (s *rodSession) Focus(ctx context.Context) error {
	_, err := s.page.Context(ctx).Activate()
	return err
}

// Close kills the browser process. Safe to call more than once.
func (s *rodSession) Close() error {
	var err error
	s.once.Do(func() {
		untrack(s)
		err = s.browser.Close()
		s.launcher.Kill()
		s.launcher.Cleanup()
	})
	return err
}

type rodTab struct {
	*rodPage
}

func (t *rodTab) Close() error {
	return t.page.Close()
}

type rodPage struct {
	page    *rod.Page
	timeout time.Duration
}

func (p *rodPage) bind(ctx context.Context) *rod.Page {
	return p.page.Context(ctx)
}

// boundContext limits ctx to d. A d of zero or less leaves ctx unbounded.
// The returned cancel must always be called.
func boundContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, "(")
}

func (p *rodPage) find(ctx context.Context, selector string) (*rod.Element, error) {
	var (
		has bool
		el  *rod.Element
		err error
	)
	if isXPath(selector) {
		has, el, err = p.bind(ctx).HasX(selector)
	} else {
		has, el, err = p.bind(ctx).Has(selector)
	}
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	return el, nil
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := boundContext(ctx, p.timeout)
	defer cancel()
	pg := p.bind(navCtx)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	if err := pg.WaitLoad(); err != nil {
		log.Printf("[Browser] WaitLoad for %s did not settle: %v", url, err)
	}
	return nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.bind(ctx).HTML()
}

func (p *rodPage) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	res, err := p.bind(ctx).Eval(js, args...)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

func (p *rodPage) Exists(ctx context.Context, selector string) (bool, error) {
	_, err := p.find(ctx, selector)
	if err != nil {
		if errors.Is(err, ErrNoElement) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *rodPage) Visible(ctx context.Context, selector string) (bool, error) {
	el, err := p.find(ctx, selector)
	if err != nil {
		return false, nil
	}
	return el.Visible()
}

func (p *rodPage) WaitElement(ctx context.Context, selector string, timeout time.Duration) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var err error
	if isXPath(selector) {
		_, err = p.bind(wctx).ElementX(selector)
	} else {
		_, err = p.bind(wctx).Element(selector)
	}
	if err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

func (p *rodPage) Text(ctx context.Context, selector string) (string, error) {
	el, err := p.find(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.Text()
}

// Click scrolls the element into view and clicks it, falling back to a
// script click when the element is covered.
func (p *rodPage) Click(ctx context.Context, selector string) error {
	el, err := p.find(ctx, selector)
	if err != nil {
		return err
	}
	_ = el.ScrollIntoView()
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		if _, jsErr := el.Eval(`() => this.click()`); jsErr != nil {
			return fmt.Errorf("click %s: %w", selector, err)
		}
	}
	return nil
}

func (p *rodPage) Frame(ctx context.Context, selector string) (Page, error) {
	el, err := p.find(ctx, selector)
	if err != nil {
		return nil, err
	}
	fr, err := el.Frame()
	if err != nil {
		return nil, fmt.Errorf("enter frame %s: %w", selector, err)
	}
	return &rodPage{page: fr, timeout: p.timeout}, nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

var live = struct {
	sync.Mutex
	sessions map[*rodSession]struct{}
}{sessions: map[*rodSession]struct{}{}}

func track(s *rodSession) {
	live.Lock()
	live.sessions[s] = struct{}{}
	live.Unlock()
}

func untrack(s *rodSession) {
	live.Lock()
	delete(live.sessions, s)
	live.Unlock()
}

// CloseAll kills every browser still open. Called from the exit path.
func CloseAll() {
	live.Lock()
	open := make([]*rodSession, 0, len(live.sessions))
	for s := range live.sessions {
		open = append(open, s)
	}
	live.Unlock()

	for _, s := range open {
		if err := s.Close(); err != nil {
			log.Printf("[Browser] close on exit: %v", err)
		}
	}
	if len(open) > 0 {
		log.Printf("[Browser] Closed %d session(s) on exit", len(open))
	}
}
