package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/internal/pkg/logger"
	"github.com/streamwatch/streamwatch-backend/internal/pkg/redact"
)

// IngestEvent handles POST /events. A clean event returns 200 with
// anomaly_detected=false; a detection returns 201 with the primary anomaly.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var event models.StreamEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return
	}
	if event.Endpoint == "" {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeValidationFailed, "endpoint is required")
		return
	}
	if event.LatencyMS < 0 {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeValidationFailed, "latency_ms must be non-negative")
		return
	}
	switch event.Outcome {
	case models.OutcomeSuccess, models.OutcomeError, models.OutcomeTimeout:
	case "":
		event.Outcome = models.OutcomeSuccess
	default:
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeValidationFailed, "outcome must be success, error, or timeout")
		return
	}
	if event.CorrelationID == "" {
		event.CorrelationID = logger.FromContext(r.Context())
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	redact.Payload(event.Payload)
	redact.Payload(event.Metadata)

	result, err := h.detection.Detect(r.Context(), &event)
	if err != nil {
		respondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if result == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"anomaly_detected": false})
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"anomaly_detected": true,
		"anomaly":          result,
	})
}
