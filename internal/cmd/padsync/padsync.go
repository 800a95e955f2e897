// Package padsync parses padsync command flags and launches the snapshot
// stream.
package padsync

import (
	"context"
	"flag"
	"strings"
	"time"

	entrypoint "github.com/rodrigolearns/paperstacks/internal/platform/cmd"
	"github.com/rodrigolearns/paperstacks/internal/platform/discovery"
	padsyncserver "github.com/rodrigolearns/paperstacks/internal/services/padsync/app"
)

// Config holds padsync command configuration.
type Config struct {
	Port             int           `env:"PAPERSTACKS_PADSYNC_PORT" envDefault:"8084"`
	PadURL           string        `env:"PAPERSTACKS_PADSYNC_PAD_URL"`
	ReviewURL        string        `env:"PAPERSTACKS_PADSYNC_REVIEW_URL"`
	PadTokenSecret   string        `env:"PAPERSTACKS_PAD_TOKEN_SECRET"`
	ReconnectBackoff time.Duration `env:"PAPERSTACKS_PADSYNC_RECONNECT_BACKOFF" envDefault:"2s"`
	MaxBackoff       time.Duration `env:"PAPERSTACKS_PADSYNC_MAX_BACKOFF" envDefault:"1m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.PadURL) == "" {
		cfg.PadURL = "ws://" + discovery.DefaultHTTPAddr(discovery.ServicePad) + "/ws/snapshots"
	}
	cfg.ReviewURL = discovery.OrDefaultHTTPBaseURL(cfg.ReviewURL, discovery.ServiceReview)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The padsync health gRPC server port")
	fs.StringVar(&cfg.PadURL, "pad-url", cfg.PadURL, "The pad snapshot websocket URL")
	fs.StringVar(&cfg.ReviewURL, "review-url", cfg.ReviewURL, "The review JSON API base URL")
	fs.StringVar(&cfg.PadTokenSecret, "pad-token-secret", cfg.PadTokenSecret, "Shared secret signing pad service tokens")
	fs.DurationVar(&cfg.ReconnectBackoff, "reconnect-backoff", cfg.ReconnectBackoff, "Initial redial delay after a dropped stream")
	fs.DurationVar(&cfg.MaxBackoff, "max-backoff", cfg.MaxBackoff, "Maximum redial delay")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the padsync stream.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePadsync, func(context.Context) error {
		return padsyncserver.Run(ctx, padsyncserver.RuntimeConfig{
			Port:             cfg.Port,
			PadURL:           cfg.PadURL,
			ReviewBaseURL:    cfg.ReviewURL,
			PadTokenSecret:   cfg.PadTokenSecret,
			ReconnectBackoff: cfg.ReconnectBackoff,
			MaxBackoff:       cfg.MaxBackoff,
		})
	})
}
