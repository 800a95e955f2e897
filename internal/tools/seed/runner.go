package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/escrow"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/ledger"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/workflow"
)

// reviewService is the slice of the review application API the runner
// drives.
type reviewService interface {
	GetTemplate(ctx context.Context, templateID string) (workflow.Template, error)
	PutTemplate(ctx context.Context, tpl workflow.Template) (workflow.Template, error)
	ListAwardTypes(ctx context.Context) ([]escrow.AwardType, error)
	PutAwardType(ctx context.Context, at escrow.AwardType) error
	GrantTokens(ctx context.Context, ownerID, amount int64, description string) (ledger.Entry, error)
}

// Config holds seed runner settings.
type Config struct {
	ManifestPath string
	StatePath    string
	Verbose      bool
}

// Runner applies one manifest with idempotent state tracking.
type Runner struct {
	cfg     Config
	service reviewService
	errW    io.Writer
}

// NewRunner builds a runner over the review application service.
func NewRunner(cfg Config, service reviewService) *Runner {
	return &Runner{
		cfg:     cfg,
		service: service,
		errW:    os.Stderr,
	}
}

// Run loads and applies the configured manifest file.
func (r *Runner) Run(ctx context.Context) error {
	manifest, err := LoadManifest(r.cfg.ManifestPath)
	if err != nil {
		return err
	}
	return r.RunManifest(ctx, manifest)
}

// RunManifest applies one manifest directly.
func (r *Runner) RunManifest(ctx context.Context, manifest Manifest) error {
	if r == nil {
		return fmt.Errorf("runner is required")
	}
	if r.service == nil {
		return fmt.Errorf("review service is required")
	}
	if err := ValidateManifest(manifest); err != nil {
		return err
	}

	state, err := loadState(r.cfg.StatePath)
	if err != nil {
		return err
	}

	if err := r.applyTemplates(ctx, manifest, &state); err != nil {
		return err
	}
	if err := r.applyAwardTypes(ctx, manifest, &state); err != nil {
		return err
	}
	if err := r.applyWallets(ctx, manifest, &state); err != nil {
		return err
	}

	return saveState(r.cfg.StatePath, state)
}

func (r *Runner) logf(format string, args ...any) {
	if r == nil || !r.cfg.Verbose {
		return
	}
	if r.errW == nil {
		return
	}
	_, _ = fmt.Fprintf(r.errW, format+"\n", args...)
}

func (r *Runner) applyTemplates(ctx context.Context, manifest Manifest, state *seedState) error {
	for _, tpl := range manifest.Templates {
		entryKey := stateKeyTemplate(tpl.ID)
		if strings.TrimSpace(state.Entries[entryKey]) != "" {
			exists, err := r.templateExists(ctx, tpl.ID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
		}
		stored, err := r.service.PutTemplate(ctx, tpl)
		if err != nil {
			return fmt.Errorf("put template %q: %w", tpl.ID, err)
		}
		state.Entries[entryKey] = stored.ID
		r.logf("seed %s: stored template %s", manifest.Name, stored.ID)
	}
	return nil
}

func (r *Runner) templateExists(ctx context.Context, templateID string) (bool, error) {
	_, err := r.service.GetTemplate(ctx, templateID)
	if err == nil {
		return true, nil
	}
	if apperrors.IsCode(err, apperrors.CodeTemplateNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("get template %q: %w", templateID, err)
}

func (r *Runner) applyAwardTypes(ctx context.Context, manifest Manifest, state *seedState) error {
	if len(manifest.AwardTypes) == 0 {
		return nil
	}
	existing, err := r.service.ListAwardTypes(ctx)
	if err != nil {
		return fmt.Errorf("list award types: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, at := range existing {
		known[at.Key] = true
	}

	for _, at := range manifest.AwardTypes {
		entryKey := stateKeyAwardType(at.Key)
		if strings.TrimSpace(state.Entries[entryKey]) != "" && known[at.Key] {
			continue
		}
		if err := r.service.PutAwardType(ctx, escrow.AwardType{
			Key:            at.Key,
			Label:          at.Label,
			AuthorPoints:   at.AuthorPoints,
			ReviewerPoints: at.ReviewerPoints,
		}); err != nil {
			return fmt.Errorf("put award type %q: %w", at.Key, err)
		}
		state.Entries[entryKey] = at.Key
		r.logf("seed %s: stored award type %s", manifest.Name, at.Key)
	}
	return nil
}

func (r *Runner) applyWallets(ctx context.Context, manifest Manifest, state *seedState) error {
	for _, wallet := range manifest.Wallets {
		entryKey := stateKeyWallet(wallet.OwnerID)
		if strings.TrimSpace(state.Entries[entryKey]) != "" {
			continue
		}
		description := strings.TrimSpace(wallet.Description)
		if description == "" {
			description = fmt.Sprintf("seed grant (%s)", manifest.Name)
		}
		entry, err := r.service.GrantTokens(ctx, wallet.OwnerID, wallet.Grant, description)
		if err != nil {
			return fmt.Errorf("grant %d tokens to account %d: %w", wallet.Grant, wallet.OwnerID, err)
		}
		state.Entries[entryKey] = strconv.FormatInt(entry.ID, 10)
		r.logf("seed %s: granted %d tokens to account %d", manifest.Name, wallet.Grant, wallet.OwnerID)
	}
	return nil
}
