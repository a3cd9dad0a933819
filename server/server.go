// Package server wires the HTTP surface over the insight pipeline.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/promptlens/promptlens/internal/profile"
	"github.com/promptlens/promptlens/plugin/ai"
	"github.com/promptlens/promptlens/plugin/ai/cache"
	"github.com/promptlens/promptlens/plugin/ai/insight"
	"github.com/promptlens/promptlens/plugin/ai/planner"
	"github.com/promptlens/promptlens/plugin/ai/similarity"
	"github.com/promptlens/promptlens/server/middleware"
	apiv1 "github.com/promptlens/promptlens/server/router/api/v1"
	"github.com/promptlens/promptlens/store"
)

// segmentCacheCapacity bounds how many query segment indexes stay warm.
const segmentCacheCapacity = 256

const (
	// rateLimitRPS bounds per-client request rate; every query may fan out
	// into several provider calls.
	rateLimitRPS   = 10
	rateLimitBurst = 20
)

// Server hosts the insight API.
type Server struct {
	profile *profile.Profile
	store   *store.Store
	echo    *echo.Echo
}

// NewServer assembles the pipeline and registers routes.
func NewServer(ctx context.Context, profile *profile.Profile, s *store.Store) (*Server, error) {
	cfg := ai.NewConfigFromProfile(profile)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	embedder := ai.NewEmbeddingService(&cfg.Embedding)
	llm := ai.NewLLMService(&cfg.LLM)
	engine := insight.NewEngine(
		s,
		embedder,
		planner.NewLLMPlanner(llm),
		similarity.NewMatcher(similarity.DefaultThreshold),
		cache.NewLRUCache(segmentCacheCapacity, 10*time.Minute),
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Recover())
	e.Use(middleware.NewRateLimiter(rateLimitRPS, rateLimitBurst).Middleware())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			slog.Info("http request",
				"uri", v.URI,
				"status", v.Status,
				"duration_ms", v.Latency.Milliseconds())
			return nil
		},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "healthy"})
	})

	apiService := apiv1.NewAPIV1Service(s, engine, llm, embedder)
	apiService.RegisterRoutes(e.Group("/api/v1"))

	server := &Server{
		profile: profile,
		store:   s,
		echo:    e,
	}
	return server, nil
}

// Start begins serving. It blocks until the listener fails or is shut down.
func (s *Server) Start(_ context.Context) error {
	return s.echo.Start(fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port))
}

// Shutdown stops the HTTP server and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down server", "error", err)
	}
	if err := s.store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
}
