// Package main is the entry point for the tasklist server.
//
// The main package stays minimal. Its job is to:
// 1. Read configuration from the environment
// 2. Build the logger
// 3. Hand both to the server and block until it stops
//
// All actual logic lives in internal/ (server, handler, service, ...).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/tasklist/internal/config"
	"github.com/sakif/tasklist/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Load reports every missing or invalid variable in one error.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_FORMAT=json for log shippers, text for a terminal.
	logger := newLogger(cfg)

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
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

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
