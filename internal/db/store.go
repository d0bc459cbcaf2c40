package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/david/procurement-scout/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// UpsertInput is one extracted record plus the derived values computed
// before the write.
type UpsertInput struct {
	Fields         models.ScrapedFields
	SourceID       string
	RunID          *uuid.UUID
	DeadlineAt     *time.Time
	BudgetAmount   *float64
	BudgetCurrency string
	Embedding      []float32
}

type UpsertResult struct {
	ID       uuid.UUID
	Inserted bool
	Changed  bool
}

type ListParams struct {
	Query   string
	Client  string
	Country string
	Found   *bool
	Limit   int
	Offset  int
}

type ListResult struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	Total         int                  `json:"total"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
}

const selectCols = `id, url, project_name, client, country, sector, summary, deadline, program, budget,
	found, matches, deadline_at, budget_amount::float8, budget_currency, source_id, last_run_id,
	created_at, updated_at, last_seen_at`

func scanOpportunity(scan func(dest ...interface{}) error) (models.Opportunity, error) {
	var o models.Opportunity
	var matchesRaw []byte
	var currency *string

	err := scan(
		&o.ID, &o.URL, &o.ProjectName, &o.Client, &o.Country, &o.Sector, &o.Summary, &o.Deadline, &o.Program, &o.Budget,
		&o.Found, &matchesRaw, &o.DeadlineAt, &o.BudgetAmount, &currency, &o.SourceID, &o.LastRunID,
		&o.CreatedAt, &o.UpdatedAt, &o.LastSeenAt,
	)
	if err != nil {
		return o, err
	}

	if currency != nil {
		o.BudgetCurrency = *currency
	}
	o.Matches = []models.Match{}
	if len(matchesRaw) > 0 {
		_ = json.Unmarshal(matchesRaw, &o.Matches)
	}

	return o, nil
}

// UpsertByURL finds the opportunity keyed by URL and inserts or overwrites it
// inside one transaction. When any descriptive field differs from the stored
// row, prior matching state is invalidated (found=false, matches=[]).
func (s *Store) UpsertByURL(ctx context.Context, in UpsertInput) (UpsertResult, error) {
	f := in.Fields
	if strings.TrimSpace(f.URL) == "" {
		return UpsertResult{}, errors.New("upsert: empty url")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upsert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, err := scanOpportunity(tx.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM opportunities WHERE url = $1 FOR UPDATE", selectCols), f.URL).Scan)

	var result UpsertResult
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx, `
			INSERT INTO opportunities (
				url, project_name, client, country, sector, summary, deadline, program, budget,
				found, matches, deadline_at, budget_amount, budget_currency, embedding, source_id, last_run_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, '[]'::jsonb, $10, $11::numeric, $12, $13::vector, $14, $15)
			RETURNING id`,
			f.URL, f.Title, f.Client, f.Country, f.Sector, f.Summary, f.Deadline, f.Program, f.Budget,
			in.DeadlineAt, in.BudgetAmount, nilIfEmpty(in.BudgetCurrency), vectorOrNil(in.Embedding), in.SourceID, in.RunID,
		).Scan(&result.ID)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("upsert: insert %s: %w", f.URL, err)
		}
		result.Inserted = true
		result.Changed = true

	case err != nil:
		return UpsertResult{}, fmt.Errorf("upsert: lookup %s: %w", f.URL, err)

	default:
		result.ID = existing.ID
		result.Changed = !f.SameContent(existing)
		_, err = tx.Exec(ctx, `
			UPDATE opportunities SET
				project_name = $2, client = $3, country = $4, sector = $5,
				summary = $6, deadline = $7, program = $8, budget = $9,
				found = CASE WHEN $10::boolean THEN FALSE ELSE found END,
				matches = CASE WHEN $10::boolean THEN '[]'::jsonb ELSE matches END,
				deadline_at = $11, budget_amount = $12::numeric, budget_currency = $13,
				embedding = CASE WHEN $10::boolean THEN $14::vector ELSE COALESCE($14::vector, embedding) END,
				source_id = $15, last_run_id = $16,
				updated_at = CASE WHEN $10::boolean THEN NOW() ELSE updated_at END,
				last_seen_at = NOW()
			WHERE id = $1`,
			existing.ID, f.Title, f.Client, f.Country, f.Sector, f.Summary, f.Deadline, f.Program, f.Budget,
			result.Changed, in.DeadlineAt, in.BudgetAmount, nilIfEmpty(in.BudgetCurrency), vectorOrNil(in.Embedding),
			in.SourceID, in.RunID,
		)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("upsert: update %s: %w", f.URL, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, fmt.Errorf("upsert: commit %s: %w", f.URL, err)
	}
	return result, nil
}

// FreshURLs returns the subset of urls already stored and seen within
// staleAfter. A non-positive staleAfter treats every stored URL as fresh.
func (s *Store) FreshURLs(ctx context.Context, urls []string, staleAfter time.Duration) (map[string]bool, error) {
	fresh := make(map[string]bool, len(urls))
	if len(urls) == 0 {
		return fresh, nil
	}

	query := "SELECT url FROM opportunities WHERE url = ANY($1)"
	args := []interface{}{urls}
	if staleAfter > 0 {
		query += " AND last_seen_at >= NOW() - ($2 * INTERVAL '1 second')"
		args = append(args, int64(staleAfter.Seconds()))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fresh urls: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("fresh urls scan: %w", err)
		}
		fresh[u] = true
	}
	return fresh, rows.Err()
}

func (s *Store) GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM opportunities WHERE id = $1", selectCols), id)
	o, err := scanOpportunity(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity: %w", err)
	}
	return &o, nil
}

func (s *Store) GetOpportunityByURL(ctx context.Context, url string) (*models.Opportunity, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM opportunities WHERE url = $1", selectCols), url)
	o, err := scanOpportunity(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity by url: %w", err)
	}
	return &o, nil
}

// buildListWhere turns filter params into a WHERE clause and its args.
func buildListWhere(params ListParams) (string, []interface{}) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if q := strings.TrimSpace(params.Query); q != "" {
		where += fmt.Sprintf(" AND (project_name ILIKE '%%' || $%d || '%%' OR summary ILIKE '%%' || $%d || '%%')", argIdx, argIdx)
		args = append(args, q)
		argIdx++
	}
	if params.Client != "" {
		where += fmt.Sprintf(" AND client = $%d", argIdx)
		args = append(args, params.Client)
		argIdx++
	}
	if params.Country != "" {
		where += fmt.Sprintf(" AND country ILIKE $%d", argIdx)
		args = append(args, params.Country)
		argIdx++
	}
	if params.Found != nil {
		where += fmt.Sprintf(" AND found = $%d", argIdx)
		args = append(args, *params.Found)
	}

	return where, args
}

func (s *Store) ListOpportunities(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Limit <= 0 {
		params.Limit = 20
	}
	where, args := buildListWhere(params)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	argIdx := len(args) + 1
	selectSQL := fmt.Sprintf("SELECT %s FROM opportunities %s ORDER BY updated_at DESC, created_at DESC LIMIT $%d OFFSET $%d",
		selectCols, where, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	opps := []models.Opportunity{}
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return &ListResult{
		Opportunities: opps,
		Total:         total,
		Limit:         params.Limit,
		Offset:        params.Offset,
	}, nil
}

func (s *Store) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total, unmatched int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*), COUNT(*) FILTER (WHERE found = FALSE) FROM opportunities").Scan(&total, &unmatched); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	stats["total"] = total
	stats["unmatched"] = unmatched

	byClient := map[string]int{}
	rows, err := s.pool.Query(ctx, "SELECT client, COUNT(*) FROM opportunities GROUP BY client ORDER BY client")
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var client string
			var count int
			if scanErr := rows.Scan(&client, &count); scanErr == nil {
				byClient[client] = count
			}
		}
	}
	stats["by_client"] = byClient

	return stats, nil
}

func nilIfEmpty(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func vectorOrNil(v []float32) interface{} {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}
