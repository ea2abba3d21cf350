package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"tecbrilho.app/erika/common/id"
	"tecbrilho.app/erika/common/logger"
	"tecbrilho.app/erika/common/otel"
	"tecbrilho.app/erika/core/config"
	"tecbrilho.app/erika/internal/brain"
	"tecbrilho.app/erika/internal/http/middleware"
	httprouter "tecbrilho.app/erika/internal/http/router"
	"tecbrilho.app/erika/internal/kommo"
	"tecbrilho.app/erika/internal/llm"
	"tecbrilho.app/erika/internal/mapper"
	"tecbrilho.app/erika/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "erika starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	assistant, err := llm.New(cfg.OpenAI)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create assistant client", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "assistant client ready", "model", assistant.Model())

	crm := kommo.NewClient(cfg.Kommo, slog.Default())
	if !cfg.Kommo.Enabled() {
		slog.WarnContext(ctx, "kommo credentials missing, CRM writes will be skipped")
	}

	services := service.NewServices(service.ServicesConfig{
		Normalizer:  mapper.NewKommoMapper(cfg.Kommo.Subdomain, mapper.NewPhoneExtractor(cfg.Phone.CountryCode)),
		Assistant:   assistant,
		Interpreter: brain.NewInterpreter(crm, cfg.Kommo, slog.Default()),
		Leads:       crm,
		Config:      cfg,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second, // assistant calls run inside the request
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		CronSecret: cfg.CronSecret,
	})

	return router
}
