// Package antibot recognises challenge pages (reCAPTCHA, hCaptcha,
// Cloudflare) and tries the checkbox click that clears the simple ones.
package antibot

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/david/procurement-scout/internal/browser"
)

type State int

const (
	Unknown State = iota
	ChallengePresent
	Clear
)

func (s State) String() string {
	switch s {
	case ChallengePresent:
		return "challenge_present"
	case Clear:
		return "clear"
	default:
		return "unknown"
	}
}

var (
	defaultIframes = []string{
		"iframe[src*='recaptcha']",
		"iframe[src*='hcaptcha']",
		"iframe[src*='challenges.cloudflare.com']",
		"iframe[src*='turnstile']",
		"iframe[title*='challenge']",
	}
	defaultContainers = []string{
		".g-recaptcha",
		".h-captcha",
		".cf-turnstile",
		"#challenge-form",
		"#challenge-stage",
		"#cf-challenge-running",
		"#cf-please-wait",
	}
	defaultPhrases = []string{
		"needs to review the security of your connection before proceeding",
		"verify you are human",
		"checking your browser before accessing",
		"please complete the security check",
		"are you a robot",
	}
	defaultCheckboxes = []string{
		"input[type='checkbox']",
		"#recaptcha-anchor",
		".recaptcha-checkbox",
		"label.cb-lb input",
		"#checkbox",
	}
)

// Detector holds the indicator lists in descending confidence order.
type Detector struct {
	Iframes    []string
	Containers []string
	Phrases    []string
	Checkboxes []string

	Timeout  time.Duration
	Interval time.Duration

	Now   func() time.Time
	Sleep func(time.Duration)
}

func NewDetector(timeout time.Duration) *Detector {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Detector{
		Iframes:    defaultIframes,
		Containers: defaultContainers,
		Phrases:    defaultPhrases,
		Checkboxes: defaultCheckboxes,
		Timeout:    timeout,
		Interval:   2 * time.Second,
	}
}

func (d *Detector) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Detector) sleep(ctx context.Context, dur time.Duration) {
	if d.Sleep != nil {
		d.Sleep(dur)
		return
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Detect reports the page's challenge state. Lookup failures yield Unknown.
func (d *Detector) Detect(ctx context.Context, p browser.Page) (state State) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[AntiBot] detect panicked: %v", r)
			state = Unknown
		}
	}()

	for _, group := range [][]string{d.Iframes, d.Containers} {
		for _, sel := range group {
			ok, err := p.Exists(ctx, sel)
			if err != nil {
				return Unknown
			}
			if ok {
				return ChallengePresent
			}
		}
	}

	html, err := p.HTML(ctx)
	if err != nil {
		return Unknown
	}
	lower := strings.ToLower(html)
	for _, phrase := range d.Phrases {
		if strings.Contains(lower, phrase) {
			return ChallengePresent
		}
	}
	return Clear
}

// clickCheckbox tries each checkbox candidate inside each challenge iframe.
func (d *Detector) clickCheckbox(ctx context.Context, p browser.Page) bool {
	for _, frameSel := range d.Iframes {
		ok, _ := p.Exists(ctx, frameSel)
		if !ok {
			continue
		}
		frame, err := p.Frame(ctx, frameSel)
		if err != nil {
			log.Printf("[AntiBot] cannot enter %s: %v", frameSel, err)
			continue
		}
		for _, box := range d.Checkboxes {
			if found, _ := frame.Exists(ctx, box); !found {
				continue
			}
			if err := frame.Click(ctx, box); err != nil {
				log.Printf("[AntiBot] click %s failed: %v", box, err)
				continue
			}
			return true
		}
	}
	return false
}

// Mitigate clicks a challenge checkbox when one exists, then polls until
// the indicators disappear or the timeout elapses.
func (d *Detector) Mitigate(ctx context.Context, p browser.Page) (state State) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[AntiBot] mitigate panicked: %v", r)
			state = ChallengePresent
		}
	}()

	if d.clickCheckbox(ctx, p) {
		log.Printf("[AntiBot] Challenge checkbox clicked, waiting for clearance")
	}

	deadline := d.now().Add(d.Timeout)
	for {
		if st := d.Detect(ctx, p); st == Clear {
			log.Printf("[AntiBot] Challenge cleared")
			return Clear
		}
		if ctx.Err() != nil || !d.now().Before(deadline) {
			log.Printf("[AntiBot] Challenge still present after %s", d.Timeout)
			return ChallengePresent
		}
		d.sleep(ctx, d.Interval)
	}
}

// Handle detects and, when needed, mitigates. It never fails the caller.
func (d *Detector) Handle(ctx context.Context, p browser.Page) State {
	st := d.Detect(ctx, p)
	if st != ChallengePresent {
		return st
	}
	log.Printf("[AntiBot] Challenge detected on %s", p.URL())
	return d.Mitigate(ctx, p)
}
