package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/david/procurement-scout/internal/db"
	"github.com/david/procurement-scout/internal/ingest"
	"github.com/david/procurement-scout/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Store is the read side the API serves from.
type Store interface {
	ListOpportunities(ctx context.Context, params db.ListParams) (*db.ListResult, error)
	GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error)
	GetStats(ctx context.Context) (map[string]interface{}, error)
	RecentRuns(ctx context.Context, limit int) ([]models.ScrapeRun, error)
}

// Sweeper starts and stops background sweeps.
type Sweeper interface {
	Start(ctx context.Context, sourceID string) (string, error)
	Stop() bool
	Status() ingest.SweepStatus
}

type Server struct {
	Store   Store
	Sweeper Sweeper
	Echo    *echo.Echo
}

// opportunityView adds the derived lifecycle status to a stored record.
type opportunityView struct {
	models.Opportunity
	ingest.StatusDecision
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(store Store, sweeper Sweeper, corsOrigins []string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:4200"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: corsOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		Store:   store,
		Sweeper: sweeper,
		Echo:    e,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/opportunities/:id", s.handleGetOpportunity)
	api.GET("/stats", s.handleGetStats)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/scrape", s.handleStartScrape)
	admin.POST("/scrape/stop", s.handleStopScrape)
	admin.GET("/scrape/status", s.handleScrapeStatus)
	admin.GET("/runs", s.handleRecentRuns)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	limit := 20
	offset := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		offset = o
	}
	var found *bool
	if raw := c.QueryParam("found"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			found = &v
		}
	}

	result, err := s.Store.ListOpportunities(c.Request().Context(), db.ListParams{
		Query:   c.QueryParam("q"),
		Client:  c.QueryParam("client"),
		Country: c.QueryParam("country"),
		Found:   found,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		c.Logger().Errorf("Failed to list opportunities: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	now := time.Now()
	views := make([]opportunityView, 0, len(result.Opportunities))
	for _, o := range result.Opportunities {
		views = append(views, opportunityView{Opportunity: o, StatusDecision: ingest.ComputeStatus(o, now)})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"opportunities": views,
		"total":         result.Total,
		"limit":         result.Limit,
		"offset":        result.Offset,
	})
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	opp, err := s.Store.GetOpportunity(c.Request().Context(), c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	if err != nil {
		c.Logger().Errorf("Failed to get opportunity: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, opportunityView{Opportunity: *opp, StatusDecision: ingest.ComputeStatus(*opp, time.Now())})
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

// handleStartScrape launches a sweep and returns at once; the sweep runs
// detached from the request.
func (s *Server) handleStartScrape(c echo.Context) error {
	source := strings.TrimSpace(c.QueryParam("source"))
	sweepID, err := s.Sweeper.Start(c.Request().Context(), source)
	switch {
	case errors.Is(err, ingest.ErrAlreadyRunning):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, ingest.ErrUnknownSource):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	log.Printf("[API] Sweep %s started (source=%q)", sweepID, source)
	resp := map[string]interface{}{
		"run":      "started",
		"sweep_id": sweepID,
		"poll":     "/api/v1/scrape/status",
	}
	if source != "" {
		resp["source"] = source
	}
	return c.JSON(http.StatusAccepted, resp)
}

func (s *Server) handleStopScrape(c echo.Context) error {
	if !s.Sweeper.Stop() {
		return c.JSON(http.StatusOK, map[string]string{"message": "no sweep running"})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"message": "stop requested"})
}

func (s *Server) handleScrapeStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Sweeper.Status())
}

func (s *Server) handleRecentRuns(c echo.Context) error {
	limit := 20
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}
	runs, err := s.Store.RecentRuns(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

// adminSecret reads ADMIN_SECRET once. Without it a random secret is used,
// which locks the admin routes for the life of the process.
func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}
	return adminSecretRuntime, nil
}
