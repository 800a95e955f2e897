// Package app runs the periodic maintenance loop for review activities:
// sweeping expired reviewer commitments and progressing stages whose
// deadlines have elapsed.
package app

import (
	"context"
	"time"

	review "github.com/rodrigolearns/paperstacks/internal/services/review/app"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 100
)

// Maintainer runs the maintenance passes the sweeper schedules. The review
// service implements it against the shared store.
type Maintainer interface {
	SweepExpiredCommitments(ctx context.Context, limit int) (review.SweepReport, error)
	ProgressDeadlineDue(ctx context.Context, limit int) (int, error)
}

// Config controls sweep pacing and batch bounds.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	return c
}

// Loop repeatedly runs maintenance passes until its context ends.
type Loop struct {
	maintainer Maintainer
	cfg        Config
	logf       func(string, ...any)
}

// New builds a Loop. A nil logf silences pass reporting.
func New(maintainer Maintainer, cfg Config, logf func(string, ...any)) *Loop {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Loop{maintainer: maintainer, cfg: cfg.normalized(), logf: logf}
}

// Run executes one pass immediately, then one per poll interval. Pass
// errors are logged and the loop keeps going; a single bad pass must not
// take the daemon down. Returns nil once the context is canceled.
func (l *Loop) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		l.pass(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (l *Loop) pass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := l.maintainer.SweepExpiredCommitments(ctx, l.cfg.BatchSize)
	if err != nil {
		l.logf("sweep commitments: %v", err)
	} else if report.Removed > 0 {
		l.logf("swept %d of %d expired commitments, penalties %d", report.Removed, report.Examined, report.PenaltyTotal)
	}

	moved, err := l.maintainer.ProgressDeadlineDue(ctx, l.cfg.BatchSize)
	if err != nil {
		l.logf("progress deadlines: %v", err)
	} else if moved > 0 {
		l.logf("progressed %d deadline-due activities", moved)
	}
}
