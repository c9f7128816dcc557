// Package server exposes the reels agent over HTTP: run submission, run
// status, master dataset audit and Prometheus metrics.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/config"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/core"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/telemetry"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/master"
)

// Run builds the full dependency graph from config and serves until the
// listener fails.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	tele := telemetry.New(cfg.Telemetry)

	llm := core.NewOpenAIProvider(cfg.LLM)
	searcher, err := core.NewSearchProvider(cfg.Search)
	if err != nil {
		return fmt.Errorf("search provider: %w", err)
	}
	scraper, err := core.NewScrapeClient(cfg.Scraping)
	if err != nil {
		return fmt.Errorf("scrape client: %w", err)
	}
	sessions, err := core.NewSessionStore(cfg.Session)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	mergeLogger := log.New(log.Writer(), "[MERGE] ", log.LstdFlags)
	merger, masterPath, err := core.NewMasterEngine(cfg.Master, mergeLogger)
	if err != nil {
		return fmt.Errorf("master engine: %w", err)
	}

	orch := core.NewOrchestrator(cfg, llm, searcher, scraper, sessions, merger, masterPath, tele, nil)
	runs := NewRunsHandler(orch, merger, baseLogger)

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(tele.Handler()))

	api := e.Group("/api")
	api.POST("/runs", runs.Create)
	api.GET("/runs/:id", runs.Get)
	api.GET("/runs", runs.List)
	api.GET("/master/audit", runs.Audit)

	return e.Start(addr)
}

// auditResponse shapes the duplicate report for the API.
type auditResponse struct {
	Duplicates []master.DuplicateGroup `json:"duplicates"`
	Clean      bool                    `json:"clean"`
}
