package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/david/procurement-scout/internal/ai"
	"github.com/david/procurement-scout/internal/antibot"
	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/config"
	"github.com/david/procurement-scout/internal/db"
	"github.com/david/procurement-scout/internal/ingest"
	"github.com/david/procurement-scout/internal/notify"
)

// scrape_site runs one registered scraper in the foreground, recording the
// run like a regular sweep.
func main() {
	siteID := flag.String("site", "", "Source ID to scrape (e.g., worldbank)")
	pages := flag.Int("pages", 0, "Override max_pages, 0 keeps the registry value")
	all := flag.Bool("all", false, "Re-extract URLs even when recently seen")
	flag.Parse()

	if *siteID == "" {
		log.Fatal("Please provide a source ID using -site flag")
	}

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer browser.CloseAll()

	pool, err := db.ConnectURL(ctx, cfg.Server.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	reg, err := ingest.LoadRegistry("")
	if err != nil {
		log.Fatalf("Failed to load sources: %v", err)
	}
	if *pages > 0 {
		for i := range reg.Sources {
			if reg.Sources[i].ID == *siteID {
				reg.Sources[i].MaxPages = *pages
			}
		}
	}

	var llm ai.FieldExtractor
	if cfg.LLM.Provider == "ollama" {
		llm = ai.NewOllamaClient(cfg.LLM.OllamaHost, cfg.LLM.EmbedModel, cfg.LLM.OllamaModel, cfg.LLM.MaxInputRunes)
	} else if cfg.LLM.OpenAIKey != "" {
		llm = ai.NewOpenAIClient(cfg.LLM.OpenAIBaseURL, cfg.LLM.OpenAIKey, cfg.LLM.OpenAIModel, cfg.LLM.MaxInputRunes)
	}

	store := db.NewStore(pool)
	pipeline := ingest.NewPipeline(store, browser.NewLauncher(cfg.Browser), &ingest.Deps{
		LLM:          llm,
		Waiter:       browser.NewWaiter(cfg.Scraping.ReadyGrace),
		AntiBot:      antibot.NewDetector(cfg.Scraping.CaptchaTimeout),
		Fetcher:      ingest.NewHTTPFetcher(cfg.Browser.UserAgent),
		ClickTimeout: cfg.Scraping.ClickTimeout,
	})
	if !*all {
		pipeline.StaleAfter = cfg.Scraping.StaleAfter
	}

	orch := ingest.NewOrchestrator(pipeline, reg, store, notify.New("", ""))
	go func() {
		<-ctx.Done()
		orch.Stop()
	}()

	log.Printf("Starting scrape for source: %s", *siteID)
	stats, err := orch.RunSource(ctx, *siteID)
	if err != nil && !ingest.IsStopped(err) {
		log.Fatalf("Scrape failed: %v", err)
	}
	log.Printf("Scrape finished for %s. Pages: %d, Found: %d, Skipped: %d, New: %d, Changed: %d, Errors: %d",
		*siteID, stats.Pages, stats.Found, stats.Skipped, stats.Inserted, stats.Updated, stats.Errors)
}
