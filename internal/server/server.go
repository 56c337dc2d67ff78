// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and routes.
// Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
// - Testable (we can create a test server without running main)
// - Reusable (multiple entry points could use the same server config)
// - Clean (main.go stays minimal — just "start the server")
//
// DEPENDENCY INJECTION FLOW:
// main.go reads config and builds the mailer, then:
//   Server.New() creates: sqlite.DB → token/password services →
//   Auth/List/Progress/Public services → handlers → routes
//
// This is the "composition root" pattern — all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
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

	"github.com/sakif/study-tracker/internal/auth"
	"github.com/sakif/study-tracker/internal/email"
	"github.com/sakif/study-tracker/internal/handler"
	"github.com/sakif/study-tracker/internal/middleware"
	"github.com/sakif/study-tracker/internal/ratelimit"
	sqliteRepo "github.com/sakif/study-tracker/internal/repository/sqlite"
	"github.com/sakif/study-tracker/internal/service"
)

// Config holds server configuration. main.go fills it from environment
// variables; nothing in this package reads the environment directly, which
// keeps the server constructible in tests with arbitrary values.
type Config struct {
	Port      int
	DBPath    string
	JWTSecret string // min 32 chars, validated by auth.NewTokenService
	AppURL    string // frontend base URL, used in password reset links
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection (db). When the server shuts
// down, the connection must be closed to flush the WAL and release the
// file lock. Start() handles that during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a new Server with the given config and mailer.
//
// DEPENDENCY INJECTION & WIRING:
// The entire dependency chain is assembled here:
//  1. Open the database (sqlite.New — runs migrations)
//  2. Build the auth primitives (TokenService, PasswordService)
//  3. Build the service layer with repository interfaces
//  4. Build handlers with services
//  5. Wire handlers to routes with per-group rate limits
//
// Each layer only receives what it needs: services get repository
// interfaces (not the concrete *sqlite.DB), handlers get services.
//
// The mailer comes from main because choosing between a real SMTP mailer
// and the logging no-op depends on the deployment environment.
func New(cfg Config, mailer email.Mailer, logger *slog.Logger) (*Server, error) {
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

	if err := s.setupRoutes(mailer); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST   /api/auth/signup                     → register, receive OTP email
//	POST   /api/auth/verify-email               → redeem OTP
//	POST   /api/auth/resend-otp                 → fresh OTP
//	POST   /api/auth/login                      → email-or-username login
//	POST   /api/password/forgot                 → start reset flow
//	POST   /api/password/reset                  → redeem reset token
//	GET    /api/auth/me                         → current profile
//	POST   /api/auth/logout                     → stateless logout
//	CRUD   /api/custom-lists, sections, topics, resources
//	POST   /api/progress/toggle                 → flip one topic/resource
//	POST   /api/progress/complete-topic         → topic + cascade
//	GET    /api/progress/lists/{listID}         → per-list rows
//	GET    /api/builtin-progress                → all builtin state
//	POST   /api/builtin-progress/batch          → batch save (diff-based)
//	POST   /api/builtin-progress/migrate        → one-shot localStorage import
//	GET    /api/public-lists                    → catalog search
//	GET    /api/public-lists/{listID}           → tree (+lineage, rate, copy)
//	GET    /api/health                          → DB-ping liveness check
//
// MIDDLEWARE ORDER MATTERS:
// RequestID → RealIP → Recoverer → Logger run globally, in that order.
// RealIP must precede the rate limiters or every request behind a proxy
// would count against the proxy's IP.
//
// RATE LIMIT BUDGETS (per IP):
// Auth endpoints burn bcrypt work or emails, so they're throttled hardest.
// Reads are cheap and get generous budgets.
func (s *Server) setupRoutes(mailer email.Mailer) error {
	s.router.Use(chimiddleware.RequestID) // Adds X-Request-ID header
	s.router.Use(chimiddleware.RealIP)    // Extracts real IP from X-Forwarded-For
	s.router.Use(chimiddleware.Recoverer) // Recovers from panics, returns 500
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	authService := service.NewAuthService(s.db, tokens, passwords, mailer, s.config.AppURL, s.logger)
	listService := service.NewListService(s.db, s.logger)
	progressService := service.NewProgressService(s.db, s.db, s.db, s.logger)
	publicService := service.NewPublicService(s.db, s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	listHandler := handler.NewListHandler(listService, s.logger)
	treeHandler := handler.NewTreeHandler(listService, s.logger)
	progressHandler := handler.NewProgressHandler(progressService, s.logger)
	publicHandler := handler.NewPublicHandler(publicService, s.logger)
	healthHandler := handler.NewHealthHandler(s.db)

	requireAuth := auth.RequireAuth(tokens)
	optionalAuth := auth.OptionalAuth(tokens)

	// Per-group limiters. Window and budget are tuned per cost: bcrypt and
	// outbound email are expensive, JSON reads are not.
	authLimit := ratelimit.Middleware(10, 15*time.Minute,
		"too many authentication attempts, try again later")
	otpLimit := ratelimit.Middleware(6, 10*time.Minute,
		"too many verification emails requested, try again later")
	passwordLimit := ratelimit.Middleware(5, 15*time.Minute,
		"too many password reset requests, try again later")
	createListLimit := ratelimit.Middleware(20, time.Hour,
		"list creation limit reached, try again later")
	saveLimit := ratelimit.Middleware(60, time.Minute,
		"saving too frequently, slow down")
	readLimit := ratelimit.Middleware(120, time.Minute,
		"too many requests, slow down")
	generalLimit := ratelimit.Middleware(300, time.Minute,
		"too many requests, slow down")

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.HandleHealth)

		// --- Auth (no token required) ---
		r.Group(func(r chi.Router) {
			r.Use(authLimit)
			r.Post("/auth/signup", authHandler.HandleSignup)
			r.Post("/auth/login", authHandler.HandleLogin)
		})
		r.Group(func(r chi.Router) {
			r.Use(otpLimit)
			r.Post("/auth/verify-email", authHandler.HandleVerifyEmail)
			r.Post("/auth/resend-otp", authHandler.HandleResendOTP)
		})
		r.Group(func(r chi.Router) {
			r.Use(passwordLimit)
			r.Post("/password/forgot", authHandler.HandleForgotPassword)
			r.Post("/password/reset", authHandler.HandleResetPassword)
		})

		// --- Public catalog (anonymous allowed) ---
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth, readLimit)
			r.Get("/public-lists", publicHandler.HandleSearch)
			r.Get("/public-lists/{listID}", publicHandler.HandleGetTree)
			r.Get("/public-lists/{listID}/lineage", publicHandler.HandleLineage)
		})

		// --- Everything below requires a valid token ---
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.With(generalLimit).Get("/auth/me", authHandler.HandleMe)
			r.With(generalLimit).Post("/auth/logout", authHandler.HandleLogout)

			// Lists
			r.With(createListLimit).Post("/custom-lists", listHandler.HandleCreate)
			r.Group(func(r chi.Router) {
				r.Use(generalLimit)
				r.Get("/custom-lists", listHandler.HandleList)
				r.Get("/custom-lists/{listID}", listHandler.HandleGetTree)
				r.Patch("/custom-lists/{listID}", listHandler.HandleUpdate)
				r.Delete("/custom-lists/{listID}", listHandler.HandleDelete)

				// Sections
				r.Post("/custom-lists/{listID}/sections", treeHandler.HandleCreateSection)
				r.Patch("/sections/{sectionID}", treeHandler.HandleUpdateSection)
				r.Delete("/sections/{sectionID}", treeHandler.HandleDeleteSection)
				r.Put("/sections/{sectionID}/reorder", treeHandler.HandleReorderSection)

				// Topics and subtopics
				r.Post("/sections/{sectionID}/topics", treeHandler.HandleCreateTopic)
				r.Patch("/topics/{topicID}", treeHandler.HandleUpdateTopic)
				r.Delete("/topics/{topicID}", treeHandler.HandleDeleteTopic)
				r.Put("/topics/{topicID}/reorder", treeHandler.HandleReorderTopic)

				// Resources
				r.Post("/topics/{topicID}/resources", treeHandler.HandleCreateResource)
				r.Patch("/resources/{resourceID}", treeHandler.HandleUpdateResource)
				r.Delete("/resources/{resourceID}", treeHandler.HandleDeleteResource)
				r.Put("/resources/{resourceID}/reorder", treeHandler.HandleReorderResource)

				// Ratings and copies on public lists
				r.Post("/public-lists/{listID}/rate", publicHandler.HandleRate)
				r.Post("/public-lists/{listID}/copy", publicHandler.HandleCopy)
			})

			// Progress
			r.Group(func(r chi.Router) {
				r.Use(saveLimit)
				r.Post("/progress/toggle", progressHandler.HandleToggle)
				r.Post("/progress/complete-topic", progressHandler.HandleCompleteTopic)
				r.Post("/builtin-progress/batch", progressHandler.HandleSaveBuiltin)
				r.Post("/builtin-progress/migrate", progressHandler.HandleMigrateLocal)
			})
			r.Group(func(r chi.Router) {
				r.Use(readLimit)
				r.Get("/progress/lists/{listID}", progressHandler.HandleListProgress)
				r.Get("/builtin-progress", progressHandler.HandleLoadBuiltin)
			})
		})
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
//
// The `defer s.db.Close()` ensures step 3 happens even if something panics.
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

		// Give in-flight requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
