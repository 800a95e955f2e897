// Package mcp parses MCP tool server flags and launches the server on stdio.
package mcp

import (
	"context"
	"flag"

	entrypoint "github.com/rodrigolearns/paperstacks/internal/platform/cmd"
	"github.com/rodrigolearns/paperstacks/internal/platform/discovery"
	"github.com/rodrigolearns/paperstacks/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	ReviewURL string `env:"PAPERSTACKS_MCP_REVIEW_URL"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.ReviewURL = discovery.OrDefaultHTTPBaseURL(cfg.ReviewURL, discovery.ServiceReview)

	fs.StringVar(&cfg.ReviewURL, "review-url", cfg.ReviewURL, "Base URL of the review JSON API")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP tool server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(context.Context) error {
		return service.Run(ctx, service.Config{ReviewURL: cfg.ReviewURL})
	})
}
