package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/streamwatch/streamwatch-backend/internal/repository"
)

// ListSuggestions handles GET /signatures/{id}/suggestions
func (h *Handler) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	suggs, err := h.suggestions.List(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggs,
		"count":       len(suggs),
	})
}

// ApproveSuggestion handles POST /suggestions/{id}/approve
func (h *Handler) ApproveSuggestion(w http.ResponseWriter, r *http.Request) {
	h.transitionSuggestion(w, r, h.suggestions.Approve, "approved")
}

// RejectSuggestion handles POST /suggestions/{id}/reject
func (h *Handler) RejectSuggestion(w http.ResponseWriter, r *http.Request) {
	h.transitionSuggestion(w, r, h.suggestions.Reject, "rejected")
}

// ApplySuggestion handles POST /suggestions/{id}/apply
func (h *Handler) ApplySuggestion(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		OccurrenceID string `json:"occurrence_id"`
		AppliedBy    string `json:"applied_by"`
		Notes        string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return
	}
	if req.OccurrenceID == "" {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeValidationFailed, "occurrence_id is required")
		return
	}

	action, err := h.suggestions.Apply(r.Context(), id, req.OccurrenceID, req.AppliedBy, req.Notes)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondErrorWithCode(w, http.StatusConflict, ErrCodeConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, action)
}

// VerifyFixAction handles POST /fix-actions/{id}/verify
func (h *Handler) VerifyFixAction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Successful *bool `json:"successful"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return
	}
	if req.Successful == nil {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeValidationFailed, "successful is required")
		return
	}

	if err := h.suggestions.Verify(r.Context(), id, *req.Successful); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "successful": *req.Successful})
}

func (h *Handler) transitionSuggestion(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) error, result string) {
	id := mux.Vars(r)["id"]

	if err := fn(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondErrorWithCode(w, http.StatusConflict, ErrCodeConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": result})
}
