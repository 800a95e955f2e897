// Package rest exposes the review service over HTTP JSON. Routes follow
// Go 1.22 method/path patterns; caller identity arrives pre-resolved in
// the X-Account-ID header, and the pad snapshot ingest is guarded by an
// HS256 service token instead.
package rest

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/platform/requestctx"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/activity"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/escrow"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/finalization"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/ledger"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/progression"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/team"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
	"github.com/rodrigolearns/paperstacks/internal/services/shared/padtoken"
	"golang.org/x/text/language"
)

// Service is the application surface the HTTP layer drives. Implemented
// by the review app service.
type Service interface {
	SubmitActivity(ctx context.Context, creatorID int64, templateID, paperID, paperTitle string, funding int64) (storage.SubmissionResult, error)
	GetActivity(ctx context.Context, ref string) (activity.Activity, error)
	JoinTeam(ctx context.Context, activityRef string, userID int64) (team.Membership, error)
	LockIn(ctx context.Context, activityRef string, userID int64) (team.Membership, error)
	ListTeam(ctx context.Context, activityRef string) ([]team.Membership, error)
	TryProgress(ctx context.Context, activityRef string, actorID *int64, forcedID string) (progression.Result, error)
	GiveAward(ctx context.Context, activityRef string, giverID, receiverID int64, awardTypeKey string) (escrow.Award, error)
	ListAwards(ctx context.Context, activityRef string) ([]escrow.Award, error)
	ToggleFinalization(ctx context.Context, activityRef string, reviewerID int64, finalized bool) (storage.FinalizationResult, error)
	ListFinalizations(ctx context.Context, activityRef string) ([]finalization.Status, error)
	ApplySnapshot(ctx context.Context, activityRef, content, contentHash string, capturedAt time.Time) (storage.SnapshotResult, error)
	ListTimeline(ctx context.Context, activityRef string, req storage.ListTimelineRequest) (storage.ListTimelineResult, error)
	GetWallet(ctx context.Context, ownerID int64) (ledger.Wallet, error)
	ListEntries(ctx context.Context, req storage.ListEntriesRequest) (storage.ListEntriesResult, error)
}

// Config holds HTTP-layer settings.
type Config struct {
	// PadTokenSecret verifies the service token on the assessment ingest
	// route. Empty disables the route.
	PadTokenSecret string
}

// Handler serves the review HTTP API.
type Handler struct {
	svc Service
	cfg Config
	mux *http.ServeMux
}

// NewHandler builds the route table over the given service.
func NewHandler(svc Service, cfg Config) *Handler {
	h := &Handler{svc: svc, cfg: cfg, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /healthz", h.healthz)

	h.mux.HandleFunc("POST /v1/activities", h.submitActivity)
	h.mux.HandleFunc("GET /v1/activities/{id}", h.getActivity)
	h.mux.HandleFunc("POST /v1/activities/{id}/team/join", h.joinTeam)
	h.mux.HandleFunc("POST /v1/activities/{id}/team/lock-in", h.lockIn)
	h.mux.HandleFunc("GET /v1/activities/{id}/team", h.listTeam)
	h.mux.HandleFunc("POST /v1/activities/{id}/progress", h.progress)
	h.mux.HandleFunc("POST /v1/activities/{id}/awards", h.giveAward)
	h.mux.HandleFunc("GET /v1/activities/{id}/awards", h.listAwards)
	h.mux.HandleFunc("POST /v1/activities/{id}/finalization", h.toggleFinalization)
	h.mux.HandleFunc("GET /v1/activities/{id}/finalization", h.listFinalizations)
	h.mux.HandleFunc("POST /v1/activities/{id}/assessment", h.applyAssessment)
	h.mux.HandleFunc("GET /v1/activities/{id}/timeline", h.listTimeline)

	h.mux.HandleFunc("GET /v1/wallets/{owner}", h.getWallet)
	h.mux.HandleFunc("GET /v1/wallets/{owner}/entries", h.listEntries)

	return h
}

// ServeHTTP resolves request-scoped identity and locale before routing.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if accountID, ok := parseAccountHeader(r); ok {
		ctx = requestctx.WithAccountID(ctx, accountID)
	}
	if locale := resolveLocale(r); locale != "" {
		ctx = requestctx.WithLocale(ctx, locale)
	}
	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// caller returns the resolved account identity or an UNAUTHENTICATED
// error for routes that require one.
func caller(r *http.Request) (int64, error) {
	accountID, ok := requestctx.AccountIDFromContext(r.Context())
	if !ok {
		return 0, apperrors.New(apperrors.CodeUnauthenticated, "caller identity is required")
	}
	return accountID, nil
}

// parseAccountHeader reads the account identity placed by the gateway.
func parseAccountHeader(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get("X-Account-ID"))
	if raw == "" {
		return 0, false
	}
	accountID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || accountID <= 0 {
		return 0, false
	}
	return accountID, true
}

// resolveLocale picks the first parseable Accept-Language tag.
func resolveLocale(r *http.Request) string {
	accept := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if accept == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

// verifyServiceToken guards the pad snapshot ingest route.
func (h *Handler) verifyServiceToken(r *http.Request) error {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return apperrors.New(apperrors.CodeUnauthenticated, "bearer token is required")
	}
	return padtoken.Verify(h.cfg.PadTokenSecret, token)
}
