package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/lyzr/workflowengine/internal/api"
	"github.com/lyzr/workflowengine/internal/config"
	"github.com/lyzr/workflowengine/internal/exprlang"
	"github.com/lyzr/workflowengine/internal/graph"
	"github.com/lyzr/workflowengine/internal/httpclient"
	"github.com/lyzr/workflowengine/internal/ledger"
	"github.com/lyzr/workflowengine/internal/logger"
	"github.com/lyzr/workflowengine/internal/nodes"
	"github.com/lyzr/workflowengine/internal/ratelimit"
	"github.com/lyzr/workflowengine/internal/runtime"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load("workflowengine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)
	log.Info("initializing workflow engine", "environment", cfg.Service.Environment)

	store, err := ledger.Open(ctx, cfg.Ledger.Path)
	if err != nil {
		log.Error("failed to open execution ledger", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	httpClient := httpclient.New(buildLimiter(cfg, log))

	conditions := exprlang.NewConditionEvaluator()
	scripts := exprlang.NewScriptRunner()

	it := &runtime.Interpreter{Ledger: store, Conditions: conditions, MaxSteps: graph.DefaultMaxSteps}
	it.Registry = graph.Registry{
		"service":     nodes.NewServiceFactory(nodes.ServiceDeps{HTTP: httpClient, Ledger: store}),
		"decision":    nodes.NewDecisionFactory(nodes.DecisionDeps{Conditions: conditions, Scripts: scripts, Ledger: store}),
		"form":        nodes.NewFormFactory(nodes.FormDeps{Ledger: store}),
		"subworkflow": nodes.NewSubworkflowFactory(nodes.SubworkflowDeps{Ledger: store, Runner: it}),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	api.Register(e, &api.Handler{Runtime: it, Log: log})

	startServer(e, cfg, log)
}

// buildLimiter returns an httpclient.Limiter backed by Redis, or nil when
// rate limiting is disabled in config.
func buildLimiter(cfg *config.Config, log *logger.Logger) httpclient.Limiter {
	if !cfg.RateLimit.Enabled {
		log.Info("rate limiting disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
	limiter := ratelimit.NewLimiter(client, cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)

	return httpclient.NewLimiterFunc(func(ctx context.Context, host string) (bool, error) {
		result, err := limiter.Allow(ctx, host)
		if err != nil {
			return false, err
		}
		return result.Allowed, nil
	})
}

// startServer runs e with graceful shutdown on SIGINT/SIGTERM, matching the
// teacher's server lifecycle.
func startServer(e *echo.Echo, cfg *config.Config, log *logger.Logger) {
	addr := fmt.Sprintf(":%d", cfg.Service.Port)
	serverErrors := make(chan error, 1)

	go func() {
		log.Info("workflow engine listening", "addr", addr)
		serverErrors <- e.Start(addr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := e.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
			os.Exit(1)
		}
		log.Info("shutdown complete")
	}
}
