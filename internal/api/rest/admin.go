package rest

import (
	"net/http"
	"strconv"
)

// GetSummary handles GET /anomalies/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	topN := h.summaryTopN
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondErrorWithCode(w, http.StatusBadRequest, ErrCodeValidationFailed, "top must be a positive integer")
			return
		}
		topN = n
	}

	summary, err := h.summary.Summary(r.Context(), topN)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// ReloadRules handles POST /admin/rules/reload. A load failure leaves the
// previous ruleset active.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if err := h.detection.ReloadRules(); err != nil {
		respondErrorWithCode(w, http.StatusUnprocessableEntity, ErrCodeValidationFailed, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}
