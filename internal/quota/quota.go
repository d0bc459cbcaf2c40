// Package quota bounds how often paid or rate-limited upstreams are called.
package quota

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

var ErrExhausted = errors.New("daily quota exhausted")

// DailyQuota counts calls per UTC day. A Max of 0 or less never refuses.
type DailyQuota struct {
	Max int

	mu    sync.Mutex
	used  int
	day   string
	nowFn func() time.Time
}

func NewDailyQuota(max int) *DailyQuota {
	return &DailyQuota{Max: max, nowFn: time.Now}
}

func (q *DailyQuota) now() time.Time {
	if q.nowFn == nil {
		return time.Now()
	}
	return q.nowFn()
}

func (q *DailyQuota) roll() {
	today := q.now().UTC().Format("2006-01-02")
	if today != q.day {
		q.day = today
		q.used = 0
	}
}

// Allow consumes one call from today's budget.
func (q *DailyQuota) Allow() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.roll()
	if q.Max > 0 && q.used >= q.Max {
		return false
	}
	q.used++
	return true
}

// Remaining returns -1 when the quota is unlimited.
func (q *DailyQuota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.Max <= 0 {
		return -1
	}
	q.roll()
	return q.Max - q.used
}

// Jitter sleeps a random duration in [Min, Max).
type Jitter struct {
	Min, Max time.Duration

	Rand  func(n int64) int64
	Sleep func(time.Duration)
}

// Duration picks the next delay without sleeping.
func (j Jitter) Duration() time.Duration {
	if j.Max <= j.Min {
		return j.Min
	}
	pick := rand.Int63n
	if j.Rand != nil {
		pick = j.Rand
	}
	return j.Min + time.Duration(pick(int64(j.Max-j.Min)))
}

func (j Jitter) Wait() {
	d := j.Duration()
	if d <= 0 {
		return
	}
	if j.Sleep != nil {
		j.Sleep(d)
		return
	}
	time.Sleep(d)
}
