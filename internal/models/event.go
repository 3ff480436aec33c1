package models

import "time"

// Event outcomes reported by the stream transport.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// StreamEvent is one inbound traffic event from a streaming API endpoint.
// Metadata carries transport-specific extras that declarative rule conditions
// may reference by name.
type StreamEvent struct {
	Endpoint         string         `json:"endpoint"`
	Outcome          string         `json:"outcome"` // success, error, timeout
	LatencyMS        float64        `json:"latency_ms"`
	HTTPStatusCode   int            `json:"http_status_code,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	ExceptionClass   string         `json:"exception_class,omitempty"`
	StackHash        string         `json:"stack_hash,omitempty"`
	Payload          map[string]any `json:"payload,omitempty"` // sanitized
	CorrelationID    string         `json:"correlation_id,omitempty"`
	ClientAppVersion string         `json:"client_app_version,omitempty"`
	ClientOSVersion  string         `json:"client_os_version,omitempty"`
	ClientDevice     string         `json:"client_device_model,omitempty"`
	OccurredAt       time.Time      `json:"occurred_at,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Field resolves an event attribute by its wire name, the names rule conditions
// use. Unknown names fall through to Metadata. The second return reports
// whether the field exists at all; callers decide how to treat absence.
func (e *StreamEvent) Field(name string) (any, bool) {
	switch name {
	case "endpoint":
		return e.Endpoint, true
	case "outcome":
		return e.Outcome, true
	case "latency_ms":
		return e.LatencyMS, true
	case "http_status_code":
		return e.HTTPStatusCode, true
	case "error_message":
		return e.ErrorMessage, true
	case "exception_class":
		return e.ExceptionClass, true
	case "stack_hash":
		return e.StackHash, true
	case "client_app_version":
		return e.ClientAppVersion, true
	case "client_os_version":
		return e.ClientOSVersion, true
	case "client_device_model":
		return e.ClientDevice, true
	case "correlation_id":
		return e.CorrelationID, true
	}
	if e.Metadata != nil {
		v, ok := e.Metadata[name]
		return v, ok
	}
	return nil, false
}

// AnomalyRef summarizes one lower-ranked match attached to a primary result.
type AnomalyRef struct {
	Type         string   `json:"type"`
	Severity     Severity `json:"severity"`
	OccurrenceID string   `json:"occurrence_id"`
}

// AnomalyResult is the primary outcome of detecting one event. A nil result
// means "no anomaly detected", never a failure substitute.
type AnomalyResult struct {
	AnomalyType         string       `json:"anomaly_type"`
	Severity            Severity     `json:"severity"`
	RuleName            string       `json:"rule_name,omitempty"` // empty for statistical detections
	Confidence          float64      `json:"confidence"`
	SignatureID         string       `json:"signature_id"`
	OccurrenceID        string       `json:"occurrence_id"`
	IsNewSignature      bool         `json:"is_new_signature"`
	RecurrenceCount     int64        `json:"recurrence_count"`
	AdditionalAnomalies []AnomalyRef `json:"additional_anomalies,omitempty"`
	TotalAnomalyCount   int          `json:"total_anomaly_count"`
}
