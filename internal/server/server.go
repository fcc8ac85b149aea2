// Package server wires the HTTP router, handlers, and their dependencies.
//
// This is the composition root: the database, token service, Discord
// provider, services, and handlers are all constructed here and connected
// to routes. main.go only loads configuration and calls New/Start.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/modsync/server/internal/auth"
	"github.com/modsync/server/internal/config"
	"github.com/modsync/server/internal/handler"
	"github.com/modsync/server/internal/middleware"
	sqliteRepo "github.com/modsync/server/internal/repository/sqlite"
	"github.com/modsync/server/internal/service"
	"github.com/modsync/server/internal/storage"
)

// Server owns the router and the resources that must be released on
// shutdown (currently just the database connection).
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New builds the full dependency chain:
//
//	sqlite.DB → services (auth, profile) → handlers → routes
//
// The archive store is passed in rather than constructed here so tests
// can wire an in-memory store without touching S3.
func New(cfg *config.Config, archives storage.ArchiveStore, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(archives); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and maps every route to its handler.
//
// ROUTE STRUCTURE:
//
//	GET    /auth/login              → redirect to Discord consent screen
//	GET    /auth/callback           → OAuth callback, redirects to the desktop client
//	POST   /auth/token              → redeem a refresh token for a new pair
//	GET    /api/me                  → current user + their profiles   [auth]
//	POST   /api/profiles            → upload a new profile            [auth]
//	PUT    /api/profiles/{id}       → replace an owned profile        [auth]
//	DELETE /api/profiles/{id}       → delete an owned profile         [auth]
//	GET    /api/profiles/{id}       → redirect to the archive (public)
//	GET    /api/profiles/{id}/meta  → profile metadata (public)
//
// Anyone holding a short id can fetch the profile it names; only the
// owner can change or remove it.
func (s *Server) setupRoutes(archives storage.ArchiveStore) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	discord := auth.NewDiscordProvider(
		s.config.DiscordClientID,
		s.config.DiscordClientSecret,
		s.config.DiscordCallbackURL,
	)

	// s.db satisfies all three repository interfaces.
	authService := service.NewAuthService(s.db, s.db, tokens, s.logger)
	profileService := service.NewProfileService(s.db, s.db, archives, s.logger)

	authHandler := handler.NewAuthHandler(discord, authService, profileService, s.config.ClientRedirectURL, s.logger)
	profileHandler := handler.NewProfileHandler(profileService, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/login", authHandler.HandleLogin)
		r.Get("/callback", authHandler.HandleCallback)
		r.Post("/token", authHandler.HandleToken)
	})

	s.router.Route("/api", func(r chi.Router) {
		// Public reads: the short id is the only credential needed.
		r.Get("/profiles/{id}", profileHandler.HandleDownload)
		r.Get("/profiles/{id}/meta", profileHandler.HandleMetadata)

		// Everything else requires a valid access token.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Post("/profiles", profileHandler.HandleCreate)
			r.Put("/profiles/{id}", profileHandler.HandleUpdate)
			r.Delete("/profiles/{id}", profileHandler.HandleDelete)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests
// (30s limit), and close the database so the WAL is flushed.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Router exposes the configured router for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
