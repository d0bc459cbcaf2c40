package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/david/procurement-scout/internal/db"
	"github.com/jedib0t/go-pretty/v6/table"
)

func main() {
	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Ping failed: %v", err)
	}
	fmt.Println("Database reachable")

	applied, err := db.AppliedMigrations(ctx, pool)
	if err != nil {
		log.Fatalf("Reading migrations failed: %v", err)
	}
	fmt.Printf("Applied migrations: %d\n", len(applied))
	for _, m := range applied {
		fmt.Printf("  %s\n", m)
	}

	rows, err := pool.Query(ctx, `
		SELECT client, count(*), count(deadline_at), count(budget_amount), count(*) FILTER (WHERE found)
		FROM opportunities
		GROUP BY client
		ORDER BY client`)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Client", "Total", "Parsed Deadline", "Parsed Budget", "Matched"})
	for rows.Next() {
		var client string
		var total, deadlines, budgets, matched int
		if err := rows.Scan(&client, &total, &deadlines, &budgets, &matched); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		t.AppendRow(table.Row{client, total, deadlines, budgets, matched})
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Rows failed: %v", err)
	}
	t.Render()
}
