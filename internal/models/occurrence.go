package models

import "time"

// OccurrenceStatus is the triage state of a single detection instance.
type OccurrenceStatus string

const (
	OccurrenceStatusNew           OccurrenceStatus = "new"
	OccurrenceStatusInvestigating OccurrenceStatus = "investigating"
	OccurrenceStatusResolved      OccurrenceStatus = "resolved"
	OccurrenceStatusFalsePositive OccurrenceStatus = "false_positive"
)

// Occurrence is one concrete detection event. It always belongs to exactly one
// signature; ResolvedAt set implies Status == resolved. Occurrences are
// append-only and mutated only by resolution actions.
type Occurrence struct {
	ID               string           `json:"id" db:"id"`
	SignatureID      string           `json:"signature_id" db:"signature_id"`
	Endpoint         string           `json:"endpoint" db:"endpoint"`
	ErrorMessage     string           `json:"error_message,omitempty" db:"error_message"`
	ExceptionClass   string           `json:"exception_class,omitempty" db:"exception_class"`
	StackHash        string           `json:"stack_hash,omitempty" db:"stack_hash"`
	HTTPStatusCode   int              `json:"http_status_code,omitempty" db:"http_status_code"`
	LatencyMS        float64          `json:"latency_ms" db:"latency_ms"`
	Severity         Severity         `json:"severity" db:"severity"`         // severity assigned by the match that produced this occurrence
	Payload          string           `json:"payload,omitempty" db:"payload"` // sanitized JSON
	Status           OccurrenceStatus `json:"status" db:"status"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy       string           `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolutionNote   string           `json:"resolution_note,omitempty" db:"resolution_note"`
	ClientAppVersion string           `json:"client_app_version,omitempty" db:"client_app_version"`
	ClientOSVersion  string           `json:"client_os_version,omitempty" db:"client_os_version"`
	ClientDevice     string           `json:"client_device_model,omitempty" db:"client_device_model"`
	CorrelationID    string           `json:"correlation_id,omitempty" db:"correlation_id"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// VersionCount is one bucket of the per-client-version breakdown for a signature.
type VersionCount struct {
	AppVersion string `json:"app_version" db:"client_app_version"`
	Count      int64  `json:"count" db:"count"`
}
