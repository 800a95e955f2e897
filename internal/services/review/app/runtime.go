package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rodrigolearns/paperstacks/internal/platform/timeouts"
	"github.com/rodrigolearns/paperstacks/internal/services/review/api/rest"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig holds the review runtime settings.
type RuntimeConfig struct {
	// HTTPPort serves the public JSON API.
	HTTPPort int
	// GRPCPort serves the gRPC health endpoint dependents gate on.
	GRPCPort int
	// DatabasePath is the shared SQLite database location.
	DatabasePath string
	// AdminAccountID receives leftover escrow on activity close.
	AdminAccountID int64
	// DuplicateWindow is the ledger idempotency window.
	DuplicateWindow time.Duration
	// CommitmentWindow is how long a joined reviewer has to lock in.
	CommitmentWindow time.Duration
	// PadTokenSecret verifies the pad service tokens on snapshot ingest.
	PadTokenSecret string
}

// Run starts the review service and blocks until context cancellation or
// a fatal serve error.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	store, err := openReviewStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close review store: %v", err)
		}
	}()

	service := NewService(store, nil, Config{
		DuplicateWindow:  cfg.DuplicateWindow,
		CommitmentWindow: cfg.CommitmentWindow,
		AdminAccountID:   cfg.AdminAccountID,
	})
	handler := rest.NewHandler(service, rest.Config{
		PadTokenSecret: cfg.PadTokenSecret,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on gRPC port %d: %w", cfg.GRPCPort, err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("review.api", grpc_health_v1.HealthCheckResponse_SERVING)

	log.Printf("review API listening at :%d, health at %v", cfg.HTTPPort, grpcListener.Addr())

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpServer.ListenAndServe()
	}()
	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- grpcServer.Serve(grpcListener)
	}()

	shutdown := func() error {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown review http server: %w", err)
		}
		return nil
	}

	select {
	case <-ctx.Done():
		return shutdown()
	case err := <-httpErr:
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve review http: %w", err)
		}
		return nil
	case err := <-grpcErr:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve review health: %w", err)
		}
		return nil
	}
}

func openReviewStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open review sqlite store: %w", err)
	}
	return store, nil
}
