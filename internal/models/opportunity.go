package models

import (
	"time"

	"github.com/google/uuid"
)

// Match is one partner recommendation produced by the matching stage.
type Match struct {
	MatchedScore float64   `json:"matched_score"`
	PartnerID    uuid.UUID `json:"partner_id"`
}

type Opportunity struct {
	ID             uuid.UUID  `json:"id"`
	URL            string     `json:"url"`
	ProjectName    string     `json:"project_name"`
	Client         string     `json:"client"`
	Country        string     `json:"country"`
	Sector         string     `json:"sector"`
	Summary        string     `json:"summary"`
	Deadline       string     `json:"deadline"`
	Program        string     `json:"program"`
	Budget         string     `json:"budget"`
	Found          bool       `json:"found"`
	Matches        []Match    `json:"matches"`
	DeadlineAt     *time.Time `json:"deadline_at"`
	BudgetAmount   *float64   `json:"budget_amount"`
	BudgetCurrency string     `json:"budget_currency"`
	SourceID       string     `json:"source_id"`
	LastRunID      *uuid.UUID `json:"last_run_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastSeenAt     time.Time  `json:"last_seen_at"`
}

// ScrapedFields is the flat record a detail page yields. The listing parse
// fills URL, the detail parse fills the rest.
type ScrapedFields struct {
	Title    string `json:"title"`
	Client   string `json:"client"`
	Country  string `json:"country"`
	Sector   string `json:"sector"`
	Summary  string `json:"summary"`
	Deadline string `json:"deadline"`
	Program  string `json:"program"`
	Budget   string `json:"budget"`
	URL      string `json:"url"`
}

// SameContent reports whether two records carry identical descriptive fields.
func (f ScrapedFields) SameContent(o Opportunity) bool {
	return f.Title == o.ProjectName &&
		f.Client == o.Client &&
		f.Country == o.Country &&
		f.Sector == o.Sector &&
		f.Summary == o.Summary &&
		f.Deadline == o.Deadline &&
		f.Program == o.Program &&
		f.Budget == o.Budget
}

// Empty is true when nothing beyond the URL and fixed client was extracted.
func (f ScrapedFields) Empty() bool {
	return f.Title == "" && f.Country == "" && f.Sector == "" && f.Summary == "" &&
		f.Deadline == "" && f.Program == "" && f.Budget == ""
}

// ScrapeRun is one scraper's pass within a sweep.
type ScrapeRun struct {
	RunID        uuid.UUID  `json:"run_id"`
	SourceID     string     `json:"source_id"`
	Status       string     `json:"status"`
	Pages        int        `json:"pages"`
	ItemsFound   int        `json:"items_found"`
	ItemsSkipped int        `json:"items_skipped"`
	ItemsSaved   int        `json:"items_saved"`
	Errors       int        `json:"errors"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}
