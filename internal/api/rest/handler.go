package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/streamwatch/streamwatch-backend/internal/repository"
	"github.com/streamwatch/streamwatch-backend/internal/service"
)

// Handler manages HTTP request handlers
type Handler struct {
	detection   service.DetectionService
	resolution  service.ResolutionService
	suggestions service.SuggestionService
	summary     service.SummaryService
	signatures  repository.SignatureRepository
	occurrences repository.OccurrenceRepository
	recurrence  repository.RecurrenceRepository
	summaryTopN int
}

// NewHandler creates a new HTTP handler
func NewHandler(
	detection service.DetectionService,
	resolution service.ResolutionService,
	suggestions service.SuggestionService,
	summary service.SummaryService,
	signatures repository.SignatureRepository,
	occurrences repository.OccurrenceRepository,
	recurrence repository.RecurrenceRepository,
	summaryTopN int,
) *Handler {
	if summaryTopN <= 0 {
		summaryTopN = 10
	}
	return &Handler{
		detection:   detection,
		resolution:  resolution,
		suggestions: suggestions,
		summary:     summary,
		signatures:  signatures,
		occurrences: occurrences,
		recurrence:  recurrence,
		summaryTopN: summaryTopN,
	}
}

// SetupRoutes configures API routes
func SetupRoutes(router *mux.Router, h *Handler) {
	// Event ingest
	router.HandleFunc("/events", h.IngestEvent).Methods("POST")

	// Signature routes
	router.HandleFunc("/signatures", h.ListSignatures).Methods("GET")
	router.HandleFunc("/signatures/{id}", h.GetSignature).Methods("GET")
	router.HandleFunc("/signatures/{id}/status", h.UpdateSignatureStatus).Methods("POST")
	router.HandleFunc("/signatures/{id}/occurrences", h.ListOccurrences).Methods("GET")
	router.HandleFunc("/signatures/{id}/suggestions", h.ListSuggestions).Methods("GET")

	// Occurrence triage
	router.HandleFunc("/occurrences/{id}/resolve", h.ResolveOccurrence).Methods("POST")
	router.HandleFunc("/occurrences/{id}/false-positive", h.MarkFalsePositive).Methods("POST")

	// Suggestion lifecycle
	router.HandleFunc("/suggestions/{id}/approve", h.ApproveSuggestion).Methods("POST")
	router.HandleFunc("/suggestions/{id}/reject", h.RejectSuggestion).Methods("POST")
	router.HandleFunc("/suggestions/{id}/apply", h.ApplySuggestion).Methods("POST")
	router.HandleFunc("/fix-actions/{id}/verify", h.VerifyFixAction).Methods("POST")

	// Aggregates and admin
	router.HandleFunc("/anomalies/summary", h.GetSummary).Methods("GET")
	router.HandleFunc("/admin/rules/reload", h.ReloadRules).Methods("POST")

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}).Methods("GET")
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps repository sentinel errors onto HTTP statuses.
func statusFor(err error) int {
	if errors.Is(err, repository.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
