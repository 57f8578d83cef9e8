package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkhouse/scribe/config"
	"github.com/inkhouse/scribe/internal/auth"
	"github.com/inkhouse/scribe/internal/pipeline"
	"github.com/inkhouse/scribe/internal/quota"
	"github.com/inkhouse/scribe/internal/telemetry"
	"github.com/inkhouse/scribe/provider/gemini"
	"github.com/inkhouse/scribe/tools/websearch"
)

// Run wires the gateway's shared dependencies once and serves until the
// listener fails.
func Run(cfg *config.Config) error {
	e := newEcho()
	ctx := context.Background()

	rdb, err := quota.Conn(ctx, cfg.Storage.Redis)
	if err != nil {
		return err
	}
	ledger := quota.NewLedger(rdb, cfg.Quota)

	tele := telemetry.New(cfg.Telemetry, nil)

	searcher, err := websearch.NewWebSearcher(cfg.Search)
	if err != nil {
		return err
	}
	if err := cfg.LLM.Validate(); err != nil {
		return err
	}
	gen := gemini.NewClient(cfg.LLM)
	orchLogger := log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	orch := pipeline.NewOrchestrator(gen, searcher, orchLogger, tele, cfg.LLM.MaxRounds, cfg.Search.MaxResults)

	handler := &GenerateHandler{
		AuthEnabled: cfg.Auth.Enabled,
		Ledger:      ledger,
		Pipeline:    orch,
		Telemetry:   tele,
		Logger:      log.New(log.Writer(), "[GATEWAY] ", log.LstdFlags),
	}
	if cfg.Auth.Enabled {
		verifier := auth.NewVerifier(cfg.Auth)
		verifier.Warm(ctx)
		handler.Auth = verifier
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	handler.Register(api)

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8090"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// newEcho builds the echo instance with the gateway's middleware and the
// unified JSON error envelope.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := "internal error"
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	return e
}
