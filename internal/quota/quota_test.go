package quota

import (
	"testing"
	"time"
)

func TestDailyQuota_ResetsAtUTCMidnight(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	q := &DailyQuota{Max: 2, nowFn: func() time.Time { return now }}

	if !q.Allow() || !q.Allow() {
		t.Fatalf("first two calls should be allowed")
	}
	if q.Allow() {
		t.Fatalf("third call on the same day should be refused")
	}
	if got := q.Remaining(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}

	now = now.Add(2 * time.Minute)
	if !q.Allow() {
		t.Fatalf("quota should reset after UTC midnight")
	}
	if got := q.Remaining(); got != 1 {
		t.Fatalf("remaining after reset = %d, want 1", got)
	}
}

func TestDailyQuota_LocalZoneDoesNotMatter(t *testing.T) {
	zone := time.FixedZone("UTC+10", 10*3600)
	// 08:00 local is 22:00 UTC the previous day.
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, zone)
	q := &DailyQuota{Max: 1, nowFn: func() time.Time { return now }}

	if !q.Allow() {
		t.Fatalf("first call should be allowed")
	}
	now = time.Date(2026, 3, 2, 9, 0, 0, 0, zone)
	if q.Allow() {
		t.Fatalf("same UTC day should still be exhausted")
	}
}

func TestDailyQuota_Unlimited(t *testing.T) {
	q := NewDailyQuota(0)
	for i := 0; i < 1000; i++ {
		if !q.Allow() {
			t.Fatalf("unlimited quota refused call %d", i)
		}
	}
	if q.Remaining() != -1 {
		t.Fatalf("unlimited remaining should be -1")
	}
}

func TestJitter(t *testing.T) {
	var slept time.Duration
	j := Jitter{
		Min:   3 * time.Second,
		Max:   9 * time.Second,
		Rand:  func(n int64) int64 { return n - 1 },
		Sleep: func(d time.Duration) { slept = d },
	}
	j.Wait()
	if slept < 3*time.Second || slept >= 9*time.Second {
		t.Fatalf("jitter out of range: %s", slept)
	}

	var called bool
	Jitter{Sleep: func(time.Duration) { called = true }}.Wait()
	if called {
		t.Fatalf("zero jitter should not sleep")
	}
}
