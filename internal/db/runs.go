package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/david/procurement-scout/internal/models"
	"github.com/google/uuid"
)

// RunUpdate carries the final counters for one scraper pass.
type RunUpdate struct {
	Status       string
	Pages        int
	ItemsFound   int
	ItemsSkipped int
	ItemsSaved   int
	Errors       int
	Details      map[string]interface{}
}

func (s *Store) StartRun(ctx context.Context, sweepID, sourceID string) (uuid.UUID, error) {
	var runID uuid.UUID
	err := s.pool.QueryRow(ctx,
		"INSERT INTO scrape_runs (sweep_id, source_id, status) VALUES ($1, $2, 'running') RETURNING run_id",
		sweepID, sourceID,
	).Scan(&runID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("start run %s: %w", sourceID, err)
	}
	return runID, nil
}

func (s *Store) FinishRun(ctx context.Context, runID uuid.UUID, u RunUpdate) error {
	var details []byte
	if len(u.Details) > 0 {
		details, _ = json.Marshal(u.Details)
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE scrape_runs SET
			status = $2, pages = $3, items_found = $4, items_skipped = $5,
			items_saved = $6, errors = $7, details = $8, completed_at = NOW()
		WHERE run_id = $1`,
		runID, u.Status, u.Pages, u.ItemsFound, u.ItemsSkipped, u.ItemsSaved, u.Errors, details,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

func (s *Store) RecentRuns(ctx context.Context, limit int) ([]models.ScrapeRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, source_id, status, pages, items_found, items_skipped, items_saved, errors, started_at, completed_at
		FROM scrape_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	runs := []models.ScrapeRun{}
	for rows.Next() {
		var r models.ScrapeRun
		if err := rows.Scan(&r.RunID, &r.SourceID, &r.Status, &r.Pages, &r.ItemsFound, &r.ItemsSkipped,
			&r.ItemsSaved, &r.Errors, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("recent runs scan: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
