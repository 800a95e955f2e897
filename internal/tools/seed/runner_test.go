package seed

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/escrow"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/ledger"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/workflow"
)

type fakeService struct {
	templates  map[string]workflow.Template
	awardTypes map[string]escrow.AwardType

	putTemplateCalls  int
	putAwardTypeCalls int
	grantCalls        int
	lastGrantDesc     string
	nextEntryID       int64
}

func newFakeService() *fakeService {
	return &fakeService{
		templates:   map[string]workflow.Template{},
		awardTypes:  map[string]escrow.AwardType{},
		nextEntryID: 40,
	}
}

func (f *fakeService) GetTemplate(_ context.Context, templateID string) (workflow.Template, error) {
	tpl, ok := f.templates[templateID]
	if !ok {
		return workflow.Template{}, apperrors.New(apperrors.CodeTemplateNotFound, "template not found")
	}
	return tpl, nil
}

func (f *fakeService) PutTemplate(_ context.Context, tpl workflow.Template) (workflow.Template, error) {
	f.putTemplateCalls++
	f.templates[tpl.ID] = tpl
	return tpl, nil
}

func (f *fakeService) ListAwardTypes(_ context.Context) ([]escrow.AwardType, error) {
	out := make([]escrow.AwardType, 0, len(f.awardTypes))
	for _, at := range f.awardTypes {
		out = append(out, at)
	}
	return out, nil
}

func (f *fakeService) PutAwardType(_ context.Context, at escrow.AwardType) error {
	f.putAwardTypeCalls++
	f.awardTypes[at.Key] = at
	return nil
}

func (f *fakeService) GrantTokens(_ context.Context, ownerID, amount int64, description string) (ledger.Entry, error) {
	f.grantCalls++
	f.lastGrantDesc = description
	f.nextEntryID++
	return ledger.Entry{ID: f.nextEntryID, OwnerID: ownerID, Amount: amount}, nil
}

func seedManifest() Manifest {
	return Manifest{
		Name: "local-dev",
		Templates: []workflow.Template{
			{
				ID:           "peer-review-standard",
				ActivityType: workflow.TypePeerReview,
				Name:         "Standard peer review",
				Stages: []workflow.Stage{
					{Key: "submission", Position: 1, DisplayName: "Submission", IsInitial: true},
					{Key: "published", Position: 2, DisplayName: "Published", IsTerminal: true},
				},
				Transitions: []workflow.Transition{
					{ID: "publish", FromStage: "submission", ToStage: "published", Automatic: false, Position: 1},
				},
			},
		},
		AwardTypes: []ManifestAwardType{
			{Key: "best_review", Label: "Best Review", AuthorPoints: 3, ReviewerPoints: 2},
		},
		Wallets: []ManifestWallet{
			{OwnerID: 2, Grant: 200},
		},
	}
}

func TestRunManifest_IdempotentSecondRun(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.json")
	service := newFakeService()
	runner := NewRunner(Config{
		ManifestPath: "ignored.yaml",
		StatePath:    statePath,
		Verbose:      true,
	}, service)

	manifest := seedManifest()
	if err := runner.RunManifest(context.Background(), manifest); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := runner.RunManifest(context.Background(), manifest); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if service.putTemplateCalls != 1 {
		t.Fatalf("put template calls = %d, want 1", service.putTemplateCalls)
	}
	if service.putAwardTypeCalls != 1 {
		t.Fatalf("put award type calls = %d, want 1", service.putAwardTypeCalls)
	}
	if service.grantCalls != 1 {
		t.Fatalf("grant calls = %d, want 1", service.grantCalls)
	}
	if service.lastGrantDesc != "seed grant (local-dev)" {
		t.Errorf("grant description = %q, want default", service.lastGrantDesc)
	}

	data, err := os.ReadFile(statePath)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	var state seedState
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Entries["wallet:2"] != "41" {
		t.Errorf("wallet state entry = %q, want %q", state.Entries["wallet:2"], "41")
	}
	if state.Entries["template:peer-review-standard"] != "peer-review-standard" {
		t.Errorf("template state entry = %q", state.Entries["template:peer-review-standard"])
	}
}

func TestRunManifest_RestoresMissingTemplate(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.json")
	service := newFakeService()
	runner := NewRunner(Config{StatePath: statePath}, service)

	manifest := seedManifest()
	if err := runner.RunManifest(context.Background(), manifest); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// The database was reset but the state file survived.
	delete(service.templates, "peer-review-standard")

	if err := runner.RunManifest(context.Background(), manifest); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if service.putTemplateCalls != 2 {
		t.Fatalf("put template calls = %d, want 2", service.putTemplateCalls)
	}
}

func TestRunManifest_RejectsInvalidManifest(t *testing.T) {
	t.Parallel()

	service := newFakeService()
	runner := NewRunner(Config{}, service)

	manifest := seedManifest()
	manifest.Wallets = append(manifest.Wallets, ManifestWallet{OwnerID: 2, Grant: 50})

	err := runner.RunManifest(context.Background(), manifest)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if service.putTemplateCalls != 0 || service.grantCalls != 0 {
		t.Fatalf("invalid manifest reached the service: %d templates, %d grants", service.putTemplateCalls, service.grantCalls)
	}
}
