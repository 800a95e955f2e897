package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	review "github.com/rodrigolearns/paperstacks/internal/services/review/app"
	reviewsqlite "github.com/rodrigolearns/paperstacks/internal/services/review/storage/sqlite"
)

// StoreConfig locates the review store the runner seeds into.
type StoreConfig struct {
	DBPath          string
	AdminAccountID  int64
	DuplicateWindow time.Duration
}

// StoreRunner owns the review store handle and applies one manifest
// end-to-end through the application layer.
type StoreRunner struct {
	runner *Runner
	store  *reviewsqlite.Store
}

// NewStoreRunner opens the review store and builds a runner over it.
func NewStoreRunner(cfg Config, store StoreConfig) (*StoreRunner, error) {
	path := strings.TrimSpace(store.DBPath)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	st, err := reviewsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open review sqlite store: %w", err)
	}
	service := review.NewService(st, nil, review.Config{
		AdminAccountID:  store.AdminAccountID,
		DuplicateWindow: store.DuplicateWindow,
	})

	return &StoreRunner{
		runner: NewRunner(cfg, service),
		store:  st,
	}, nil
}

// Run loads and applies the configured manifest.
func (r *StoreRunner) Run(ctx context.Context) error {
	if r == nil || r.runner == nil {
		return fmt.Errorf("runner is not configured")
	}
	return r.runner.Run(ctx)
}

// Close closes the owned store handle.
func (r *StoreRunner) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}
