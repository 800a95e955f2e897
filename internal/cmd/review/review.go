// Package review parses review service flags and launches the service.
package review

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/rodrigolearns/paperstacks/internal/platform/cmd"
	server "github.com/rodrigolearns/paperstacks/internal/services/review/app"
)

// Config holds review command configuration.
type Config struct {
	HTTPPort         int           `env:"PAPERSTACKS_REVIEW_HTTP_PORT" envDefault:"8080"`
	GRPCPort         int           `env:"PAPERSTACKS_REVIEW_GRPC_PORT" envDefault:"8082"`
	DBPath           string        `env:"PAPERSTACKS_REVIEW_DB_PATH" envDefault:"data/review.db"`
	AdminAccountID   int64         `env:"PAPERSTACKS_REVIEW_ADMIN_ACCOUNT" envDefault:"1"`
	DuplicateWindow  time.Duration `env:"PAPERSTACKS_REVIEW_DUPLICATE_WINDOW" envDefault:"1m"`
	CommitmentWindow time.Duration `env:"PAPERSTACKS_REVIEW_COMMITMENT_WINDOW" envDefault:"72h"`
	PadTokenSecret   string        `env:"PAPERSTACKS_PAD_TOKEN_SECRET"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "The review JSON API port")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The review health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The review SQLite database path")
	fs.Int64Var(&cfg.AdminAccountID, "admin-account", cfg.AdminAccountID, "Account receiving leftover escrow")
	fs.DurationVar(&cfg.DuplicateWindow, "duplicate-window", cfg.DuplicateWindow, "Ledger idempotency window")
	fs.DurationVar(&cfg.CommitmentWindow, "commitment-window", cfg.CommitmentWindow, "Reviewer lock-in window")
	fs.StringVar(&cfg.PadTokenSecret, "pad-token-secret", cfg.PadTokenSecret, "Shared secret verifying pad service tokens")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the review service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceReview, func(context.Context) error {
		return server.Run(ctx, server.RuntimeConfig{
			HTTPPort:         cfg.HTTPPort,
			GRPCPort:         cfg.GRPCPort,
			DatabasePath:     cfg.DBPath,
			AdminAccountID:   cfg.AdminAccountID,
			DuplicateWindow:  cfg.DuplicateWindow,
			CommitmentWindow: cfg.CommitmentWindow,
			PadTokenSecret:   cfg.PadTokenSecret,
		})
	})
}
