package service

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rodrigolearns/paperstacks/internal/services/mcp/domain"
)

type stubReader struct{}

func (stubReader) Wallet(context.Context, int64) (domain.WalletResult, error) {
	return domain.WalletResult{OwnerID: 1, Balance: 10}, nil
}

func (stubReader) Activity(context.Context, string) (domain.ActivityResult, error) {
	return domain.ActivityResult{ID: "act-1"}, nil
}

func (stubReader) Team(context.Context, string) (domain.ListTeamResult, error) {
	return domain.ListTeamResult{}, nil
}

func (stubReader) Timeline(context.Context, string, domain.TimelineQuery) (domain.ListTimelineResult, error) {
	return domain.ListTimelineResult{}, nil
}

// TestServeWithTransportServesAndStops ensures the server registers its
// tools, serves a client, and exits cleanly on cancel.
func TestServeWithTransportServesAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := newServer(stubReader{})
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.serveWithTransport(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	clientCtx, clientCancel := context.WithTimeout(context.Background(), time.Second)
	defer clientCancel()

	type connectResult struct {
		session *mcp.ClientSession
		err     error
	}
	connectDone := make(chan connectResult, 1)
	go func() {
		session, err := client.Connect(clientCtx, clientTransport, nil)
		connectDone <- connectResult{session: session, err: err}
	}()

	var session *mcp.ClientSession
	select {
	case result := <-connectDone:
		if result.err != nil {
			t.Fatalf("connect client: %v", result.err)
		}
		session = result.session
	case <-time.After(2 * time.Second):
		t.Fatal("connect client timed out")
	}
	defer session.Close()

	tools, err := session.ListTools(clientCtx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{"get_activity", "get_wallet", "list_team", "list_timeline"}
	if len(names) != len(want) {
		t.Fatalf("tools = %v, want %v", names, want)
	}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("tools = %v, want %v", names, want)
		}
	}

	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

// TestRunRequiresReviewURL ensures Run refuses to start without a review API
// base URL.
func TestRunRequiresReviewURL(t *testing.T) {
	err := Run(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing review URL")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("expected 'required' in error, got: %v", err)
	}
}

func TestServeWithTransportNilServer(t *testing.T) {
	var server *Server
	if err := server.serveWithTransport(context.Background(), &mcp.StdioTransport{}); err == nil {
		t.Fatal("expected error for nil server")
	}
}
