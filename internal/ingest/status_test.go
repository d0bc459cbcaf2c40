package ingest

import (
	"testing"
	"time"

	"github.com/david/procurement-scout/internal/models"
)

func TestComputeStatus(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(72 * time.Hour)

	tests := []struct {
		name   string
		opp    models.Opportunity
		status string
		reason string
	}{
		{"award notice", models.Opportunity{ProjectName: "Contract award: Road upgrade", DeadlineAt: &future}, "awarded", "award_notice"},
		{"future deadline", models.Opportunity{DeadlineAt: &future}, "open", "future_deadline"},
		{"past deadline", models.Opportunity{DeadlineAt: &past}, "closed", "deadline_passed"},
		{"rolling", models.Opportunity{Deadline: "Open until filled"}, "open", "rolling_open"},
		{"not defined", models.Opportunity{Deadline: "Not defined"}, "unknown", "missing_deadline"},
		{"empty", models.Opportunity{}, "unknown", "missing_deadline"},
		{"unparsed", models.Opportunity{Deadline: "Q3 of next fiscal"}, "needs_review", "unparsed_deadline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStatus(tt.opp, now)
			if got.Status != tt.status || got.Reason != tt.reason {
				t.Fatalf("expected %s/%s, got %s/%s", tt.status, tt.reason, got.Status, got.Reason)
			}
		})
	}
}
