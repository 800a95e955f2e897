// Package seed parses seed command flags and applies a manifest to the
// review store.
package seed

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/rodrigolearns/paperstacks/internal/platform/cmd"
	"github.com/rodrigolearns/paperstacks/internal/tools/seed"
)

// Config holds seed command configuration.
type Config struct {
	DBPath          string        `env:"PAPERSTACKS_REVIEW_DB_PATH" envDefault:"data/review.db"`
	ManifestPath    string        `env:"PAPERSTACKS_SEED_MANIFEST" envDefault:"internal/tools/seed/manifests/local-dev.yaml"`
	StatePath       string        `env:"PAPERSTACKS_SEED_STATE" envDefault:"data/seed-state.json"`
	AdminAccountID  int64         `env:"PAPERSTACKS_REVIEW_ADMIN_ACCOUNT" envDefault:"1"`
	DuplicateWindow time.Duration `env:"PAPERSTACKS_REVIEW_DUPLICATE_WINDOW" envDefault:"1m"`
	Verbose         bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The review SQLite database path")
	fs.StringVar(&cfg.ManifestPath, "manifest", cfg.ManifestPath, "Manifest file to apply")
	fs.StringVar(&cfg.StatePath, "state", cfg.StatePath, "State file tracking applied entries")
	fs.Int64Var(&cfg.AdminAccountID, "admin-account", cfg.AdminAccountID, "Account receiving leftover escrow")
	fs.DurationVar(&cfg.DuplicateWindow, "duplicate-window", cfg.DuplicateWindow, "Ledger idempotency window")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose output")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run applies the configured manifest and exits.
func Run(ctx context.Context, cfg Config) error {
	runner, err := seed.NewStoreRunner(seed.Config{
		ManifestPath: cfg.ManifestPath,
		StatePath:    cfg.StatePath,
		Verbose:      cfg.Verbose,
	}, seed.StoreConfig{
		DBPath:          cfg.DBPath,
		AdminAccountID:  cfg.AdminAccountID,
		DuplicateWindow: cfg.DuplicateWindow,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = runner.Close()
	}()

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("apply manifest %s: %w", cfg.ManifestPath, err)
	}
	return nil
}
