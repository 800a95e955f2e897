// Package app streams assessment snapshots from the collaborative pad
// service into the review API. The pad is the writing surface; review owns
// the canonical copy, so every frame the pad emits is replayed through the
// assessment ingest route.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rodrigolearns/paperstacks/internal/services/shared/padtoken"
	"golang.org/x/net/websocket"
)

const (
	defaultReconnectBackoff = 2 * time.Second
	defaultMaxBackoff       = time.Minute
)

// Frame is one snapshot emitted by the pad service: the full current
// content of an activity's assessment pad.
type Frame struct {
	ActivityID string `json:"activity_id"`
	Content    string `json:"content"`
	Hash       string `json:"hash"`
	CapturedAt string `json:"captured_at"`
}

// Applier lands a decoded frame on the review side. Implemented by
// ReviewClient.
type Applier interface {
	Apply(ctx context.Context, frame Frame) (ApplyResult, error)
}

// SyncConfig controls the pad stream connection.
type SyncConfig struct {
	// PadURL is the websocket endpoint serving snapshot frames.
	PadURL string
	// Secret signs the service token presented on the handshake.
	Secret string
	// ReconnectBackoff is the initial redial delay after a dropped stream.
	ReconnectBackoff time.Duration
	// MaxBackoff caps the redial delay growth.
	MaxBackoff time.Duration
}

func (c SyncConfig) normalized() SyncConfig {
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = defaultReconnectBackoff
	}
	if c.MaxBackoff < c.ReconnectBackoff {
		c.MaxBackoff = defaultMaxBackoff
	}
	return c
}

// Syncer consumes the pad snapshot stream and applies each frame, redialing
// with backoff whenever the stream drops.
type Syncer struct {
	applier Applier
	cfg     SyncConfig
	logf    func(string, ...any)
}

// NewSyncer builds a Syncer. A nil logf silences stream reporting.
func NewSyncer(applier Applier, cfg SyncConfig, logf func(string, ...any)) *Syncer {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Syncer{applier: applier, cfg: cfg.normalized(), logf: logf}
}

// Run streams until the context ends. Connection failures redial with
// exponential backoff; a stream that delivered frames resets the backoff.
// Returns nil once the context is canceled.
func (s *Syncer) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	backoff := s.cfg.ReconnectBackoff
	for {
		applied, err := s.syncOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.logf("pad stream: %v", err)
		}
		if applied > 0 {
			backoff = s.cfg.ReconnectBackoff
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}
}

// syncOnce dials the pad and consumes frames until the stream ends.
// Returns how many frames were applied.
func (s *Syncer) syncOnce(ctx context.Context) (int, error) {
	conn, err := s.dial()
	if err != nil {
		return 0, err
	}

	// Closing the conn is the only way to interrupt a blocked decode.
	consumed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-consumed:
		}
	}()
	defer func() {
		close(consumed)
		_ = conn.Close()
	}()

	applied := 0
	decoder := json.NewDecoder(conn)
	for {
		var frame Frame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return applied, nil
			}
			return applied, err
		}
		if strings.TrimSpace(frame.ActivityID) == "" {
			s.logf("pad frame without activity id dropped")
			continue
		}
		result, err := s.applier.Apply(ctx, frame)
		if err != nil {
			// The next snapshot supersedes this one; dropping is safe.
			s.logf("apply snapshot for %s: %v", frame.ActivityID, err)
			continue
		}
		applied++
		if result.Changed {
			s.logf("snapshot for %s changed content, reset %d finalizations", frame.ActivityID, result.Reset)
		}
	}
}

// dial opens the websocket with a fresh service token on the handshake.
func (s *Syncer) dial() (*websocket.Conn, error) {
	config, err := websocket.NewConfig(s.cfg.PadURL, originFor(s.cfg.PadURL))
	if err != nil {
		return nil, err
	}
	token, err := padtoken.Mint(s.cfg.Secret, time.Now(), padtoken.DefaultTTL)
	if err != nil {
		return nil, err
	}
	config.Header = make(http.Header)
	config.Header.Set("Authorization", "Bearer "+token)
	return websocket.DialConfig(config)
}

// originFor maps a ws(s) URL to its http(s) origin form.
func originFor(wsURL string) string {
	switch {
	case strings.HasPrefix(wsURL, "wss"):
		return "https" + strings.TrimPrefix(wsURL, "wss")
	case strings.HasPrefix(wsURL, "ws"):
		return "http" + strings.TrimPrefix(wsURL, "ws")
	default:
		return wsURL
	}
}
