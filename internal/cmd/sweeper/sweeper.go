// Package sweeper parses sweeper command flags and launches the
// maintenance loop.
package sweeper

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/rodrigolearns/paperstacks/internal/platform/cmd"
	"github.com/rodrigolearns/paperstacks/internal/platform/discovery"
	sweeperserver "github.com/rodrigolearns/paperstacks/internal/services/sweeper/app"
)

// Config holds sweeper command configuration.
type Config struct {
	Port             int           `env:"PAPERSTACKS_SWEEPER_PORT" envDefault:"8083"`
	ReviewAddr       string        `env:"PAPERSTACKS_SWEEPER_REVIEW_ADDR"`
	DBPath           string        `env:"PAPERSTACKS_SWEEPER_DB_PATH" envDefault:"data/review.db"`
	AdminAccountID   int64         `env:"PAPERSTACKS_SWEEPER_ADMIN_ACCOUNT" envDefault:"1"`
	DuplicateWindow  time.Duration `env:"PAPERSTACKS_SWEEPER_DUPLICATE_WINDOW" envDefault:"1m"`
	CommitmentWindow time.Duration `env:"PAPERSTACKS_SWEEPER_COMMITMENT_WINDOW" envDefault:"72h"`
	PollInterval     time.Duration `env:"PAPERSTACKS_SWEEPER_POLL_INTERVAL" envDefault:"30s"`
	BatchSize        int           `env:"PAPERSTACKS_SWEEPER_BATCH_SIZE" envDefault:"100"`
	GRPCDialTimeout  time.Duration `env:"PAPERSTACKS_SWEEPER_DIAL_TIMEOUT" envDefault:"2s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.ReviewAddr = discovery.OrDefaultGRPCAddr(cfg.ReviewAddr, discovery.ServiceReview)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The sweeper health gRPC server port")
	fs.StringVar(&cfg.ReviewAddr, "review-addr", cfg.ReviewAddr, "The review health gRPC server address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The shared review SQLite database path")
	fs.Int64Var(&cfg.AdminAccountID, "admin-account", cfg.AdminAccountID, "Account receiving leftover escrow")
	fs.DurationVar(&cfg.DuplicateWindow, "duplicate-window", cfg.DuplicateWindow, "Ledger idempotency window")
	fs.DurationVar(&cfg.CommitmentWindow, "commitment-window", cfg.CommitmentWindow, "Reviewer lock-in window")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Maintenance pass interval")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Maximum rows examined per pass")
	fs.DurationVar(&cfg.GRPCDialTimeout, "dial-timeout", cfg.GRPCDialTimeout, "gRPC dependency dial timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the sweeper.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSweeper, func(context.Context) error {
		return sweeperserver.Run(ctx, sweeperserver.RuntimeConfig{
			Port:             cfg.Port,
			ReviewAddr:       cfg.ReviewAddr,
			DBPath:           cfg.DBPath,
			AdminAccountID:   cfg.AdminAccountID,
			DuplicateWindow:  cfg.DuplicateWindow,
			CommitmentWindow: cfg.CommitmentWindow,
			PollInterval:     cfg.PollInterval,
			BatchSize:        cfg.BatchSize,
			GRPCDialTimeout:  cfg.GRPCDialTimeout,
		})
	})
}
