package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/config"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	action := flag.String("action", database.ActionUp, "Migration action: up, down, version, force")
	steps := flag.Int("steps", 0, "Version to force (for force action)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.AuditToDatabase() {
		return errors.New("AUDIT_DATABASE_URL is not set")
	}

	logger := config.NewLogger(cfg.Environment)

	migrator, err := database.NewMigrator(context.Background(), cfg.AuditDatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	logger.Info("running migration action", slog.String("action", *action))
	if err := migrator.Apply(*action, *steps); err != nil {
		return fmt.Errorf("migration %s failed: %w", *action, err)
	}
	return nil
}
