package models

import "time"

// AlertType tags a broadcast message with how the detection was classified.
type AlertType string

const (
	AlertTypeNew        AlertType = "new_anomaly"
	AlertTypeRecurring  AlertType = "recurring_anomaly"
	AlertTypeCritical   AlertType = "critical_anomaly"
	AlertTypeEscalation AlertType = "escalation_alert"
)

// EscalationReason explains why an alert was escalated.
type EscalationReason string

const (
	EscalationCriticalSeverity EscalationReason = "critical_severity"
	EscalationHighRecurrence   EscalationReason = "high_recurrence"
)

// Broadcast channel groups that WebSocket subscribers can join.
const (
	ChannelAnomalyAlerts = "anomaly_alerts"
	ChannelStreamMetrics = "stream_metrics"
	ChannelEscalations   = "escalations"
)

// ClientInfo carries the reporting client's version fields for trend analysis.
type ClientInfo struct {
	AppVersion  string `json:"app_version,omitempty"`
	OSVersion   string `json:"os_version,omitempty"`
	DeviceModel string `json:"device_model,omitempty"`
}

// AlertPayload is the anomaly alert pushed to dashboard subscribers.
type AlertPayload struct {
	ID              string     `json:"id"`
	SignatureID     string     `json:"signature_id"`
	Type            string     `json:"type"` // anomaly type, e.g. latency_outlier
	Severity        Severity   `json:"severity"`
	Endpoint        string     `json:"endpoint"`
	CorrelationID   string     `json:"correlation_id,omitempty"`
	LatencyMS       float64    `json:"latency_ms"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	IsNewSignature  bool       `json:"is_new_signature"`
	RecurrenceCount int64      `json:"recurrence_count"`
	ClientInfo      ClientInfo `json:"client_info"`
}

// AlertMessage is the wire envelope for one broadcast. Escalation fields are
// set only on escalation_alert messages.
type AlertMessage struct {
	Type                       AlertType        `json:"type"`
	Alert                      AlertPayload     `json:"alert"`
	EscalationReason           EscalationReason `json:"escalation_reason,omitempty"`
	RequiresImmediateAttention bool             `json:"requires_immediate_attention,omitempty"`
	Timestamp                  time.Time        `json:"timestamp"`
}

// AnomalySummary aggregates the current signature population for dashboards.
type AnomalySummary struct {
	TotalSignatures   int64              `json:"total_signatures"`
	TotalOccurrences  int64              `json:"total_occurrences"`
	BySeverity        map[Severity]int64 `json:"by_severity"`
	ByStatus          map[string]int64   `json:"by_status"`
	TopRecurring      []SignatureSummary `json:"top_recurring"`
	TopSuggestions    []SuggestionRank   `json:"top_suggestions"`
	RequiresAttention int64              `json:"requires_attention"`
}
