package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// ResolveOccurrence handles POST /occurrences/{id}/resolve
func (h *Handler) ResolveOccurrence(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		ResolvedBy string `json:"resolved_by"`
		Note       string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return
	}

	if err := h.resolution.ResolveOccurrence(r.Context(), id, req.ResolvedBy, req.Note); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "resolved"})
}

// MarkFalsePositive handles POST /occurrences/{id}/false-positive
func (h *Handler) MarkFalsePositive(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		MarkedBy string `json:"marked_by"`
		Note     string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return
	}

	if err := h.resolution.MarkFalsePositive(r.Context(), id, req.MarkedBy, req.Note); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "false_positive"})
}
