package rest

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/services/review/core/filter"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

// parseOwner reads the {owner} path segment as a positive account id.
func parseOwner(r *http.Request) (int64, error) {
	raw := r.PathValue("owner")
	ownerID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ownerID <= 0 {
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
			"owner must be a positive account id",
			map[string]string{"Owner": raw})
	}
	return ownerID, nil
}

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	ownerID, err := parseOwner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	wallet, err := h.svc.GetWallet(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toWalletPayload(wallet))
}

type entriesResponse struct {
	Entries       []entryPayload `json:"entries"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// listEntries pages an owner's ledger newest-first by entry id keyset.
func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	ownerID, err := parseOwner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()

	filterStr := strings.TrimSpace(q.Get("filter"))
	cond, err := filter.ParseEntryFilter(filterStr)
	if err != nil {
		writeError(w, r, apperrors.Wrap(apperrors.CodeInvalidArgument, "filter expression is invalid", err))
		return
	}
	pageSize, err := parsePageSize(q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	scope := r.PathValue("owner") + "|" + filterStr
	c, hasToken, err := decodePageToken(q, scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := storage.ListEntriesRequest{
		OwnerID:      ownerID,
		PageSize:     pageSize,
		FilterClause: cond.Clause,
		FilterParams: cond.Params,
	}
	if hasToken {
		req.BeforeID = c.Seq
	}
	result, err := h.svc.ListEntries(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := entriesResponse{Entries: make([]entryPayload, 0, len(result.Entries))}
	for _, e := range result.Entries {
		resp.Entries = append(resp.Entries, toEntryPayload(e))
	}
	if result.HasMore && len(result.Entries) > 0 {
		token, err := encodeNextPage(result.Entries[len(result.Entries)-1].ID, true, scope)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.NextPageToken = token
	}
	writeJSON(w, r, http.StatusOK, resp)
}
