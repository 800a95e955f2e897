package rest

import (
	"net/http"
	"strings"
	"time"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/platform/pagination"
	"github.com/rodrigolearns/paperstacks/internal/services/review/core/filter"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

type submitActivityRequest struct {
	TemplateID string `json:"template_id"`
	PaperID    string `json:"paper_id"`
	PaperTitle string `json:"paper_title"`
	Funding    int64  `json:"funding"`
}

type submitActivityResponse struct {
	Activity activityPayload `json:"activity"`
	Paper    paperPayload    `json:"paper"`
}

func (h *Handler) submitActivity(w http.ResponseWriter, r *http.Request) {
	creatorID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req submitActivityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.svc.SubmitActivity(r.Context(), creatorID, req.TemplateID, req.PaperID, req.PaperTitle, req.Funding)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, submitActivityResponse{
		Activity: toActivityPayload(result.Activity),
		Paper:    toPaperPayload(result.Paper),
	})
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	act, err := h.svc.GetActivity(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toActivityPayload(act))
}

type progressRequest struct {
	TransitionID string `json:"transition_id"`
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	actorID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req progressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.svc.TryProgress(r.Context(), r.PathValue("id"), &actorID, strings.TrimSpace(req.TransitionID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

type giveAwardRequest struct {
	ReceiverID int64  `json:"receiver_id"`
	AwardType  string `json:"award_type"`
}

func (h *Handler) giveAward(w http.ResponseWriter, r *http.Request) {
	giverID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req giveAwardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	award, err := h.svc.GiveAward(r.Context(), r.PathValue("id"), giverID, req.ReceiverID, req.AwardType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toAwardPayload(award))
}

func (h *Handler) listAwards(w http.ResponseWriter, r *http.Request) {
	awards, err := h.svc.ListAwards(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	payload := make([]awardPayload, 0, len(awards))
	for _, a := range awards {
		payload = append(payload, toAwardPayload(a))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"awards": payload})
}

type finalizationRequest struct {
	Finalized *bool `json:"finalized"`
}

type finalizationResponse struct {
	IsFinalized     bool `json:"is_finalized"`
	AllFinalized    bool `json:"all_finalized"`
	ActiveReviewers int  `json:"active_reviewers"`
	FinalizedCount  int  `json:"finalized_count"`
}

func (h *Handler) toggleFinalization(w http.ResponseWriter, r *http.Request) {
	reviewerID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req finalizationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Finalized == nil {
		writeError(w, r, apperrors.New(apperrors.CodeInvalidArgument, "finalized flag is required"))
		return
	}
	result, err := h.svc.ToggleFinalization(r.Context(), r.PathValue("id"), reviewerID, *req.Finalized)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, finalizationResponse{
		IsFinalized:     result.IsFinalized,
		AllFinalized:    result.AllFinalized,
		ActiveReviewers: result.ActiveReviewers,
		FinalizedCount:  result.FinalizedCount,
	})
}

func (h *Handler) listFinalizations(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.svc.ListFinalizations(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	payload := make([]finalizationPayload, 0, len(statuses))
	for _, s := range statuses {
		payload = append(payload, toFinalizationPayload(s))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"finalizations": payload})
}

type assessmentRequest struct {
	Content     string `json:"content"`
	ContentHash string `json:"content_hash"`
	CapturedAt  string `json:"captured_at"`
}

type assessmentResponse struct {
	Changed bool `json:"changed"`
	Reset   int  `json:"reset"`
}

func (h *Handler) applyAssessment(w http.ResponseWriter, r *http.Request) {
	if err := h.verifyServiceToken(r); err != nil {
		writeError(w, r, err)
		return
	}
	var req assessmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var capturedAt time.Time
	if strings.TrimSpace(req.CapturedAt) != "" {
		parsed, err := time.Parse(time.RFC3339, req.CapturedAt)
		if err != nil {
			writeError(w, r, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
				"captured_at must be an RFC 3339 timestamp",
				map[string]string{"CapturedAt": req.CapturedAt}))
			return
		}
		capturedAt = parsed
	}
	result, err := h.svc.ApplySnapshot(r.Context(), r.PathValue("id"), req.Content, req.ContentHash, capturedAt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, assessmentResponse{Changed: result.Changed, Reset: result.Reset})
}

type timelineResponse struct {
	Events        []timelineEventPayload `json:"events"`
	NextPageToken string                 `json:"next_page_token,omitempty"`
}

func (h *Handler) listTimeline(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("id")
	q := r.URL.Query()

	filterStr := strings.TrimSpace(q.Get("filter"))
	cond, err := filter.ParseTimelineFilter(filterStr)
	if err != nil {
		writeError(w, r, apperrors.Wrap(apperrors.CodeInvalidArgument, "filter expression is invalid", err))
		return
	}
	pageSize, err := parsePageSize(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	order, err := pagination.NormalizeOrder(strings.TrimSpace(q.Get("order")), timelineOrder)
	if err != nil {
		writeError(w, r, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
			"order must be asc or desc",
			map[string]string{"Order": strings.TrimSpace(q.Get("order"))}))
		return
	}
	descending := order == "desc"

	scope := ref + "|" + filterStr + "|" + order
	c, hasToken, err := decodePageToken(q, scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := storage.ListTimelineRequest{
		PageSize:     pageSize,
		Descending:   descending,
		FilterClause: cond.Clause,
		FilterParams: cond.Params,
	}
	if hasToken {
		req.AfterSeq = c.Seq
	}
	result, err := h.svc.ListTimeline(r.Context(), ref, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := timelineResponse{Events: make([]timelineEventPayload, 0, len(result.Events))}
	for _, evt := range result.Events {
		resp.Events = append(resp.Events, toTimelineEventPayload(evt))
	}
	if result.HasMore && len(result.Events) > 0 {
		token, err := encodeNextPage(result.Events[len(result.Events)-1].Seq, descending, scope)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.NextPageToken = token
	}
	writeJSON(w, r, http.StatusOK, resp)
}
