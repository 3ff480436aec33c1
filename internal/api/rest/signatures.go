package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/internal/repository"
)

// ListSignatures handles GET /signatures
func (h *Handler) ListSignatures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondErrorWithCode(w, http.StatusBadRequest, ErrCodeValidationFailed, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sigs, err := h.signatures.ListSignatures(r.Context(), q.Get("status"), q.Get("severity"), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"signatures": sigs,
		"count":      len(sigs),
	})
}

// GetSignature handles GET /signatures/{id}. The response bundles the
// recurrence tracker and client version breakdown alongside the signature.
func (h *Handler) GetSignature(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sig, err := h.signatures.GetSignature(r.Context(), id)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	resp := map[string]interface{}{"signature": sig}

	tracker, err := h.recurrence.GetRecurrence(r.Context(), id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tracker != nil {
		resp["recurrence"] = tracker
	}

	versions, err := h.occurrences.VersionBreakdown(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp["client_versions"] = versions

	respondJSON(w, http.StatusOK, resp)
}

// UpdateSignatureStatus handles POST /signatures/{id}/status
func (h *Handler) UpdateSignatureStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return
	}

	if err := h.resolution.TransitionSignature(r.Context(), id, models.SignatureStatus(req.Status)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}

// ListOccurrences handles GET /signatures/{id}/occurrences
func (h *Handler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondErrorWithCode(w, http.StatusBadRequest, ErrCodeValidationFailed, "limit must be a positive integer")
			return
		}
		limit = n
	}

	occs, err := h.occurrences.ListOccurrences(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"occurrences": occs,
		"count":       len(occs),
	})
}
