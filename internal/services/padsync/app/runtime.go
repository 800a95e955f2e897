package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls padsync startup and stream behavior.
type RuntimeConfig struct {
	Port             int
	PadURL           string
	ReviewBaseURL    string
	PadTokenSecret   string
	ReconnectBackoff time.Duration
	MaxBackoff       time.Duration
}

const defaultPadsyncPort = 8084

// Run starts the padsync stream and its health endpoint, blocking until
// the context ends.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.PadURL) == "" {
		return fmt.Errorf("pad URL is required")
	}
	if strings.TrimSpace(cfg.ReviewBaseURL) == "" {
		return fmt.Errorf("review base URL is required")
	}
	if strings.TrimSpace(cfg.PadTokenSecret) == "" {
		return fmt.Errorf("pad token secret is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultPadsyncPort
	}

	client := NewReviewClient(cfg.ReviewBaseURL, cfg.PadTokenSecret, nil)
	syncer := NewSyncer(client, SyncConfig{
		PadURL:           cfg.PadURL,
		Secret:           cfg.PadTokenSecret,
		ReconnectBackoff: cfg.ReconnectBackoff,
		MaxBackoff:       cfg.MaxBackoff,
	}, log.Printf)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on padsync port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("padsync.stream", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("padsync listening at %v, streaming from %s", listener.Addr(), cfg.PadURL)
	return syncer.Run(ctx)
}
