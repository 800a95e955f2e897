package rest

import "net/http"

func (h *Handler) joinTeam(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.svc.JoinTeam(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toMembershipPayload(m))
}

func (h *Handler) lockIn(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.svc.LockIn(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toMembershipPayload(m))
}

func (h *Handler) listTeam(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.ListTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	payload := make([]membershipPayload, 0, len(members))
	for _, m := range members {
		payload = append(payload, toMembershipPayload(m))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"members": payload})
}
