package antibot

import (
	"context"
	"testing"
	"time"

	"github.com/david/procurement-scout/internal/browser/browsertest"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) sleep(d time.Duration) { c.t = c.t.Add(d) }

func testDetector(c *clock) *Detector {
	d := NewDetector(60 * time.Second)
	d.Now = c.now
	d.Sleep = c.sleep
	return d
}

func TestDetect_Layers(t *testing.T) {
	cases := []struct {
		name string
		html string
		want State
	}{
		{"clean", `<div class="list">projects</div>`, Clear},
		{"recaptcha iframe", `<iframe src="https://www.google.com/recaptcha/api2/anchor"></iframe>`, ChallengePresent},
		{"turnstile container", `<div class="cf-turnstile"></div>`, ChallengePresent},
		{"cloudflare phrase", `<p>www.adb.org needs to review the security of your connection before proceeding.</p>`, ChallengePresent},
	}

	d := testDetector(&clock{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := d.Detect(context.Background(), browsertest.NewPage(tc.html))
			if got != tc.want {
				t.Fatalf("Detect = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestHandle_CaptchaCleared(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	d := testDetector(c)

	main := browsertest.NewPage(`<iframe src="https://www.google.com/recaptcha/api2/anchor"></iframe>`)
	frame := browsertest.NewPage(`<input type="checkbox" id="recaptcha-anchor">`)
	frame.OnClick = map[string]func(*browsertest.Page) error{
		"input[type='checkbox']": func(*browsertest.Page) error {
			main.SetDoc(`<div class="list">ok</div>`)
			return nil
		},
	}
	main.Frames = map[string]*browsertest.Page{"iframe[src*='recaptcha']": frame}

	if got := d.Handle(context.Background(), main); got != Clear {
		t.Fatalf("Handle = %s, want clear", got)
	}
	if len(frame.Clicks) != 1 {
		t.Fatalf("expected one checkbox click, got %v", frame.Clicks)
	}
}

func TestMitigate_TimesOut(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	d := testDetector(c)
	start := c.t

	main := browsertest.NewPage(`<div id="challenge-form"></div>`)
	if got := d.Handle(context.Background(), main); got != ChallengePresent {
		t.Fatalf("Handle = %s, want challenge_present", got)
	}
	if c.t.Sub(start) < 60*time.Second {
		t.Fatalf("gave up after %s, before the bound", c.t.Sub(start))
	}
}

type panickyPage struct{ *browsertest.Page }

func (panickyPage) Exists(context.Context, string) (bool, error) { panic("detached node") }

func TestDetect_NeverPanics(t *testing.T) {
	d := testDetector(&clock{})
	if got := d.Detect(context.Background(), panickyPage{browsertest.NewPage("")}); got != Unknown {
		t.Fatalf("Detect = %s, want unknown", got)
	}
}
