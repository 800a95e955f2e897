package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rodrigolearns/paperstacks/internal/services/shared/padtoken"
	"golang.org/x/net/websocket"
)

type captureApplier struct {
	mu     sync.Mutex
	frames []Frame
	failOn string
	ch     chan Frame
}

func (a *captureApplier) Apply(_ context.Context, frame Frame) (ApplyResult, error) {
	a.mu.Lock()
	a.frames = append(a.frames, frame)
	a.mu.Unlock()
	if a.ch != nil {
		select {
		case a.ch <- frame:
		default:
		}
	}
	if a.failOn != "" && frame.Hash == a.failOn {
		return ApplyResult{}, errors.New("review unavailable")
	}
	return ApplyResult{Changed: true}, nil
}

func (a *captureApplier) applied() []Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Frame(nil), a.frames...)
}

// padStream serves frames over websocket: the first connection replays the
// given frames, later connections hold the stream open until the client
// hangs up.
func padStream(t *testing.T, frames [][]Frame, tokens chan<- string) *httptest.Server {
	t.Helper()
	var conns int32
	srv := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		n := int(atomic.AddInt32(&conns, 1))
		if tokens != nil {
			token, _ := strings.CutPrefix(conn.Request().Header.Get("Authorization"), "Bearer ")
			select {
			case tokens <- token:
			default:
			}
		}
		if n <= len(frames) {
			enc := json.NewEncoder(conn)
			for _, frame := range frames[n-1] {
				if err := enc.Encode(frame); err != nil {
					return
				}
			}
			if n < len(frames) {
				// Drop the connection so the syncer redials for the
				// next batch.
				return
			}
		}
		_, _ = io.Copy(io.Discard, conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFrames(t *testing.T, ch <-chan Frame, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i+1)
		}
	}
}

func TestSyncerForwardsFramesInOrder(t *testing.T) {
	const secret = "pad-secret"
	tokens := make(chan string, 1)
	srv := padStream(t, [][]Frame{{
		{ActivityID: "act-1", Content: "first draft", Hash: "h1", CapturedAt: "2026-03-10T12:00:00Z"},
		{ActivityID: "act-1", Content: "second draft", Hash: "h2", CapturedAt: "2026-03-10T12:05:00Z"},
	}}, tokens)

	applier := &captureApplier{ch: make(chan Frame, 4)}
	syncer := NewSyncer(applier, SyncConfig{
		PadURL:           wsURL(srv),
		Secret:           secret,
		ReconnectBackoff: 5 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- syncer.Run(ctx)
	}()

	waitFrames(t, applier.ch, 2)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("syncer did not stop after cancel")
	}

	frames := applier.applied()
	if len(frames) != 2 {
		t.Fatalf("applied %d frames, want 2", len(frames))
	}
	if frames[0].Hash != "h1" || frames[1].Hash != "h2" {
		t.Fatalf("frame order = [%s %s], want [h1 h2]", frames[0].Hash, frames[1].Hash)
	}
	if frames[0].Content != "first draft" {
		t.Fatalf("content = %q, want %q", frames[0].Content, "first draft")
	}

	select {
	case token := <-tokens:
		if err := padtoken.Verify(secret, token); err != nil {
			t.Fatalf("verify handshake token: %v", err)
		}
	default:
		t.Fatal("handshake carried no bearer token")
	}
}

func TestSyncerRedialsAfterDroppedStream(t *testing.T) {
	srv := padStream(t, [][]Frame{
		{{ActivityID: "act-1", Hash: "h1"}},
		{{ActivityID: "act-1", Hash: "h2"}},
	}, nil)

	applier := &captureApplier{ch: make(chan Frame, 4)}
	syncer := NewSyncer(applier, SyncConfig{
		PadURL:           wsURL(srv),
		Secret:           "pad-secret",
		ReconnectBackoff: 5 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- syncer.Run(ctx)
	}()

	waitFrames(t, applier.ch, 2)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("syncer did not stop after cancel")
	}

	frames := applier.applied()
	if len(frames) != 2 {
		t.Fatalf("applied %d frames across reconnects, want 2", len(frames))
	}
	if frames[1].Hash != "h2" {
		t.Fatalf("second frame hash = %q, want h2", frames[1].Hash)
	}
}

func TestSyncerKeepsStreamingPastApplyFailure(t *testing.T) {
	srv := padStream(t, [][]Frame{{
		{ActivityID: "act-1", Hash: "bad"},
		{ActivityID: "act-1", Hash: "good"},
	}}, nil)

	applier := &captureApplier{ch: make(chan Frame, 4), failOn: "bad"}
	var logged atomic.Int32
	syncer := NewSyncer(applier, SyncConfig{
		PadURL:           wsURL(srv),
		Secret:           "pad-secret",
		ReconnectBackoff: 5 * time.Millisecond,
	}, func(string, ...any) { logged.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- syncer.Run(ctx)
	}()

	waitFrames(t, applier.ch, 2)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("syncer did not stop after cancel")
	}

	frames := applier.applied()
	if len(frames) != 2 {
		t.Fatalf("attempted %d frames, want 2 despite the failed apply", len(frames))
	}
	if logged.Load() == 0 {
		t.Fatal("expected the failed apply to be logged")
	}
}

func TestSyncerDropsFramesWithoutActivityID(t *testing.T) {
	srv := padStream(t, [][]Frame{{
		{ActivityID: "", Hash: "stray"},
		{ActivityID: "act-1", Hash: "h1"},
	}}, nil)

	applier := &captureApplier{ch: make(chan Frame, 4)}
	syncer := NewSyncer(applier, SyncConfig{
		PadURL:           wsURL(srv),
		Secret:           "pad-secret",
		ReconnectBackoff: 5 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- syncer.Run(ctx)
	}()

	waitFrames(t, applier.ch, 1)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("syncer did not stop after cancel")
	}

	frames := applier.applied()
	if len(frames) != 1 || frames[0].Hash != "h1" {
		t.Fatalf("applied frames = %+v, want only h1", frames)
	}
}

func TestOriginFor(t *testing.T) {
	if got := originFor("ws://pad:8090/ws/snapshots"); got != "http://pad:8090/ws/snapshots" {
		t.Fatalf("origin = %q, want http form", got)
	}
	if got := originFor("wss://pad.example.com/ws"); got != "https://pad.example.com/ws" {
		t.Fatalf("origin = %q, want https form", got)
	}
}
