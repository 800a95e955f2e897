package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	platformgrpc "github.com/rodrigolearns/paperstacks/internal/platform/grpc"
	"github.com/rodrigolearns/paperstacks/internal/platform/timeouts"
	review "github.com/rodrigolearns/paperstacks/internal/services/review/app"
	reviewsqlite "github.com/rodrigolearns/paperstacks/internal/services/review/storage/sqlite"
	"github.com/rodrigolearns/paperstacks/internal/services/shared/grpcdial"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls sweeper startup and loop behavior.
type RuntimeConfig struct {
	Port             int
	ReviewAddr       string
	DBPath           string
	AdminAccountID   int64
	DuplicateWindow  time.Duration
	CommitmentWindow time.Duration
	PollInterval     time.Duration
	BatchSize        int
	GRPCDialTimeout  time.Duration
}

const (
	defaultSweeperPort = 8083
	defaultSweeperDB   = "data/review.db"
)

// Run starts the sweeper: it waits for the review service to report
// healthy, then runs maintenance passes against the shared store until the
// context ends.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.ReviewAddr) == "" {
		return fmt.Errorf("review address is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultSweeperPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultSweeperDB
	}
	if cfg.GRPCDialTimeout <= 0 {
		cfg.GRPCDialTimeout = timeouts.GRPCDial
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create sweeper storage dir: %w", err)
		}
	}

	store, err := reviewsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open review sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close review sqlite store: %v", closeErr)
		}
	}()

	// The sweep mutates review-owned rows, so hold the first pass until
	// the review service is up and its migrations have run.
	reviewConn, err := grpcdial.DialWithHealth(
		ctx,
		cfg.ReviewAddr,
		cfg.GRPCDialTimeout,
		"review",
		log.Printf,
		platformgrpc.DefaultClientDialOptions()...,
	)
	if err != nil {
		return err
	}
	if closeErr := reviewConn.Close(); closeErr != nil {
		log.Printf("close review connection: %v", closeErr)
	}

	service := review.NewService(store, nil, review.Config{
		DuplicateWindow:  cfg.DuplicateWindow,
		CommitmentWindow: cfg.CommitmentWindow,
		AdminAccountID:   cfg.AdminAccountID,
	})
	loop := New(service, Config{
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
	}, log.Printf)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on sweeper port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("sweeper.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("sweeper listening at %v", listener.Addr())
	return loop.Run(ctx)
}
