package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/david/procurement-scout/internal/ai"
	"github.com/david/procurement-scout/internal/antibot"
	"github.com/david/procurement-scout/internal/api"
	"github.com/david/procurement-scout/internal/browser"
	"github.com/david/procurement-scout/internal/config"
	"github.com/david/procurement-scout/internal/db"
	"github.com/david/procurement-scout/internal/ingest"
	"github.com/david/procurement-scout/internal/notify"
	"github.com/david/procurement-scout/internal/quota"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.ConnectURL(ctx, cfg.Server.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	store := db.NewStore(pool)

	reg, err := ingest.LoadRegistry("")
	if err != nil {
		log.Fatalf("Failed to load sources: %v", err)
	}

	llm, embedder := newLLM(cfg.LLM)
	deps := &ingest.Deps{
		LLM:          llm,
		Waiter:       browser.NewWaiter(cfg.Scraping.ReadyGrace),
		AntiBot:      antibot.NewDetector(cfg.Scraping.CaptchaTimeout),
		Fetcher:      ingest.NewHTTPFetcher(cfg.Browser.UserAgent),
		ClickTimeout: cfg.Scraping.ClickTimeout,
	}

	pipeline := ingest.NewPipeline(store, browser.NewLauncher(cfg.Browser), deps)
	pipeline.Embedder = embedder
	pipeline.StaleAfter = cfg.Scraping.StaleAfter
	pipeline.PageDelay = cfg.Scraping.PageDelay

	notifier := notify.New(cfg.Notify.SlackWebhook, cfg.Notify.WebhookSecret)
	orch := ingest.NewOrchestrator(pipeline, reg, store, notifier)
	orch.BackendAPI = cfg.Notify.BackendAPI
	orch.SweepTimeout = cfg.Scraping.SweepTimeout

	scheduler := cron.New()
	schedule(ctx, scheduler, orch, cfg.Scraping.Schedule, "")
	for _, entry := range reg.Enabled() {
		if entry.Schedule != "" {
			schedule(ctx, scheduler, orch, entry.Schedule, entry.ID)
		}
	}
	scheduler.Start()

	if cfg.Scraping.OnStartup {
		trigger(ctx, orch, "", "startup")
	}

	srv := api.NewServer(store, orch, cfg.Server.CORSOrigins)
	go func() {
		log.Printf("Server starting on port %s...", cfg.Server.Port)
		if err := srv.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Print("Shutting down")

	<-scheduler.Stop().Done()
	if orch.Stop() {
		// Let the current detail page finish so its run row is closed.
		waitCtx, cancelWait := context.WithTimeout(context.Background(), cfg.Scraping.ShutdownGrace)
		if err := orch.Wait(waitCtx); err != nil {
			log.Printf("Sweep still running after %s, closing browsers anyway", cfg.Scraping.ShutdownGrace)
		}
		cancelWait()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	browser.CloseAll()
	notifier.Wait()
}

// newLLM builds the configured extractor behind rate, quota and jitter
// limits. Embeddings are only available through Ollama.
func newLLM(cfg config.LLMConfig) (ai.FieldExtractor, ai.Embedder) {
	var inner ai.FieldExtractor
	ollama := ai.NewOllamaClient(cfg.OllamaHost, cfg.EmbedModel, cfg.OllamaModel, cfg.MaxInputRunes)
	switch cfg.Provider {
	case "ollama":
		inner = ollama
	default:
		if cfg.OpenAIKey == "" {
			log.Print("OPENAI_API_KEY is not set; LLM-derived fields will stay empty")
		}
		inner = ai.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.OpenAIModel, cfg.MaxInputRunes)
	}

	jitter := quota.Jitter{Min: cfg.JitterMin, Max: cfg.JitterMax}
	llm := ai.NewThrottled(inner, cfg.RPS, quota.NewDailyQuota(cfg.DailyQuota), jitter)

	var embedder ai.Embedder
	if cfg.EmbedModel != "" {
		embedder = ollama
	}
	return llm, embedder
}

func schedule(ctx context.Context, c *cron.Cron, orch *ingest.Orchestrator, spec, sourceID string) {
	if spec == "" {
		return
	}
	label := "scheduled"
	if sourceID != "" {
		label = "scheduled " + sourceID
	}
	if _, err := c.AddFunc(spec, func() { trigger(ctx, orch, sourceID, label) }); err != nil {
		log.Printf("[Cron] invalid schedule %q for %q: %v", spec, sourceID, err)
		return
	}
	log.Printf("[Cron] %s sweep on %q", label, spec)
}

func trigger(ctx context.Context, orch *ingest.Orchestrator, sourceID, reason string) {
	id, err := orch.Start(ctx, sourceID)
	if err != nil {
		log.Printf("[Cron] %s sweep not started: %v", reason, err)
		return
	}
	log.Printf("[Cron] %s sweep %s started", reason, id)
}
