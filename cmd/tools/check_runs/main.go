package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/david/procurement-scout/internal/db"
	"github.com/jedib0t/go-pretty/v6/table"
)

func main() {
	limit := flag.Int("n", 20, "number of runs to show")
	flag.Parse()

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	runs, err := db.NewStore(pool).RecentRuns(ctx, *limit)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Status", "Pages", "Found", "Skipped", "Saved", "Errors", "Duration", "Started At"})

	for _, r := range runs {
		duration := "Running..."
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		t.AppendRow(table.Row{r.SourceID, r.Status, r.Pages, r.ItemsFound, r.ItemsSkipped, r.ItemsSaved, r.Errors,
			duration, r.StartedAt.Format("2006-01-02 15:04:05")})
	}
	t.Render()
}
