// Package main is the entry point for the study tracker server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal — its job is to:
// 1. Read configuration (from env vars, flags, or config files)
// 2. Create dependencies (logger, mailer, etc.)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
// This separation makes the app testable and its components reusable.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/sakif/study-tracker/internal/auth"
	"github.com/sakif/study-tracker/internal/email"
	"github.com/sakif/study-tracker/internal/server"
)

func main() {
	// === 1. SET UP LOGGING ===
	// Structured text logs to stdout. In production you'd raise the level
	// to Info or Warn to reduce noise.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// === 2. LOAD .env (IF PRESENT) ===
	// godotenv loads KEY=VALUE pairs from a local .env file into the
	// process environment. Real environment variables win over .env values,
	// and a missing file is fine — in deployment the environment is set by
	// the platform, not a file.
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded environment from .env file")
	}

	// === 3. READ CONFIGURATION ===
	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	// DB_PATH overrides the default for production deployments.
	// Example: DB_PATH=/var/lib/study-tracker/prod.db
	dbPath := "data/tracker.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// JWT_SECRET is mandatory. Every token this server has ever issued is
	// signed with it, so refusing to boot beats silently generating one and
	// invalidating all sessions on every restart. Generate with:
	//   JWT_SECRET=$(openssl rand -hex 32)
	jwtSecret := os.Getenv("JWT_SECRET")
	if len(jwtSecret) < auth.MinSecretLength {
		logger.Error("JWT_SECRET must be set and at least 32 characters; generate one with `openssl rand -hex 32`")
		os.Exit(1)
	}

	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		appURL = "http://localhost:5173" // Vite dev server default
	}

	// === 4. MAILER ===
	// SMTP settings are optional for local development: without them the
	// NopMailer logs what it would have sent, so signup still works and the
	// OTP can be read from the server log.
	var mailer email.Mailer
	smtpHost := os.Getenv("SMTP_HOST")
	if smtpHost != "" {
		smtpPort := 587
		if raw := os.Getenv("SMTP_PORT"); raw != "" {
			var err error
			smtpPort, err = strconv.Atoi(raw)
			if err != nil {
				logger.Error("invalid SMTP_PORT value", slog.String("value", raw))
				os.Exit(1)
			}
		}
		mailer = email.NewSMTPMailer(email.SMTPConfig{
			Host:     smtpHost,
			Port:     smtpPort,
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		}, logger)
	} else {
		logger.Warn("SMTP_HOST not set — emails will be logged, not sent")
		mailer = email.NewNopMailer(logger)
	}

	// === 5. CREATE AND START THE SERVER ===
	cfg := server.Config{
		Port:      port,
		DBPath:    dbPath,
		JWTSecret: jwtSecret,
		AppURL:    appURL,
	}

	srv, err := server.New(cfg, mailer, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
