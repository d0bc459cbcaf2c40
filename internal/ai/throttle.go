package ai

import (
	"context"
	"fmt"

	"github.com/david/procurement-scout/internal/quota"
	"golang.org/x/time/rate"
)

// Throttled paces calls to an inner extractor and enforces a daily budget.
type Throttled struct {
	inner   FieldExtractor
	limiter *rate.Limiter
	quota   *quota.DailyQuota
	jitter  quota.Jitter
}

// NewThrottled wraps inner. rps <= 0 disables pacing; a nil quota is unlimited.
func NewThrottled(inner FieldExtractor, rps float64, q *quota.DailyQuota, jitter quota.Jitter) *Throttled {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if q == nil {
		q = quota.NewDailyQuota(0)
	}
	return &Throttled{
		inner:   inner,
		limiter: rate.NewLimiter(limit, 1),
		quota:   q,
		jitter:  jitter,
	}
}

func (t *Throttled) Extract(ctx context.Context, systemPrompt, rawText string) (string, error) {
	// Wait first so a cancelled wait does not spend the daily budget.
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limit wait: %w", err)
	}
	if !t.quota.Allow() {
		return "", quota.ErrExhausted
	}
	t.jitter.Wait()
	return t.inner.Extract(ctx, systemPrompt, rawText)
}

// Remaining reports today's unused quota, -1 when unlimited.
func (t *Throttled) Remaining() int {
	return t.quota.Remaining()
}
