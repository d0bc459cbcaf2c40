package ingest

import (
	"strings"
	"time"

	"github.com/david/procurement-scout/internal/models"
)

// StatusDecision is the derived lifecycle of a stored opportunity.
type StatusDecision struct {
	Status     string  `json:"status"`
	Reason     string  `json:"status_reason"`
	Confidence float64 `json:"status_confidence"`
}

// awardKeywords mark notices that report a result rather than invite bids.
// Matched against title and summary only, never the URL.
var awardKeywords = []string{
	"contract award",
	"award notice",
	"awarded to",
	"notice of award",
	"attribution du marché",
	"avis d'attribution",
	"zuschlagserteilung",
	"adjudicación",
}

var rollingHints = []string{
	"rolling basis",
	"open until filled",
	"continuous",
	"ongoing",
	"until further notice",
}

var undefinedDeadlines = []string{"", "not defined", "n/a", "na", "-", "tbd", "none"}

// ComputeStatus classifies opp as open, closed, awarded, unknown or
// needs_review from its parsed deadline and descriptive text.
func ComputeStatus(opp models.Opportunity, now time.Time) StatusDecision {
	now = now.UTC()
	text := strings.ToLower(opp.ProjectName + " \n " + opp.Summary)

	for _, kw := range awardKeywords {
		if strings.Contains(text, kw) {
			return StatusDecision{Status: "awarded", Reason: "award_notice", Confidence: 0.9}
		}
	}

	if opp.DeadlineAt != nil {
		if opp.DeadlineAt.After(now) {
			return StatusDecision{Status: "open", Reason: "future_deadline", Confidence: 0.93}
		}
		return StatusDecision{Status: "closed", Reason: "deadline_passed", Confidence: 0.95}
	}

	raw := strings.ToLower(strings.TrimSpace(opp.Deadline))
	for _, hint := range rollingHints {
		if strings.Contains(raw, hint) {
			return StatusDecision{Status: "open", Reason: "rolling_open", Confidence: 0.8}
		}
	}
	for _, u := range undefinedDeadlines {
		if raw == u {
			return StatusDecision{Status: "unknown", Reason: "missing_deadline", Confidence: 0.25}
		}
	}
	return StatusDecision{Status: "needs_review", Reason: "unparsed_deadline", Confidence: 0.4}
}
