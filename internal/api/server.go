package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/waveline/internal/api/auth"
	"github.com/waveline/internal/config"
	"github.com/waveline/internal/copilot"
	"github.com/waveline/internal/database"
	"github.com/waveline/internal/llm"
	"github.com/waveline/internal/notify"
	"github.com/waveline/internal/workspace"
)

// Server is the Waveline HTTP API
type Server struct {
	echo  *echo.Echo
	cfg   *config.Config
	db    *sql.DB
	queue *notify.Queue
}

// NewServer wires the full application: database, stores, assistant, job
// queue and routes
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	dbURL, err := database.ResolveURL(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	queue, err := notify.NewQueue(context.Background(), dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to set up notification queue: %w", err)
	}

	llmClient, err := llm.NewOpenAIClient(cfg.Assistant.APIKey, cfg.Assistant.Model, cfg.Assistant.Temperature)
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant client: %w", err)
	}

	wsStore := workspace.NewStore(db)
	pgStore := copilot.NewPGStore(db)
	tokenService := auth.NewTokenService(db, cfg.Auth.JWTSecret)

	service := copilot.NewService(
		pgStore, pgStore,
		copilot.StoreAdapter{Store: wsStore},
		copilot.NewLLMAssistant(llmClient),
		queue,
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestLogger())

	v1 := e.Group("/api/v1")
	auth.RegisterHandlers(v1, tokenService)

	authed := v1.Group("", auth.RequireAuth(tokenService), auth.ResolveWorkspace(wsStore))

	chatLimiter := newOperatorLimiter(cfg.Copilot.ChatRequestsPerMinute)
	copilot.NewHandler(service).RegisterRoutes(authed, chatLimiter.Middleware())

	packs := &reviewPackHandler{store: wsStore}
	authed.GET("/workspaces/:id/review-pack", packs.get)

	return &Server{echo: e, cfg: cfg, db: db, queue: queue}, nil
}

// requestLogger logs each request through zerolog
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Warn().Err(v.Error)
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Msg("Request")
			return nil
		},
	})
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start notification queue: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
		log.Info().Str("addr", addr).Msg("Starting Waveline API")
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown did not complete cleanly")
	}
	if err := s.queue.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Queue shutdown did not complete cleanly")
	}
	if err := s.db.Close(); err != nil {
		log.Warn().Err(err).Msg("Database close failed")
	}

	return nil
}
