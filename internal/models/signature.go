package models

import "time"

// SignatureStatus is the lifecycle state of a signature. Signatures are never
// deleted, only status-transitioned.
type SignatureStatus string

const (
	SignatureStatusActive     SignatureStatus = "active"
	SignatureStatusResolved   SignatureStatus = "resolved"
	SignatureStatusIgnored    SignatureStatus = "ignored"
	SignatureStatusMonitoring SignatureStatus = "monitoring"
)

// Signature is the deduplicated fingerprint of one recurring anomaly pattern.
// Hash is a stable digest of {anomaly_type, normalized_endpoint, error_class,
// rule_name} and is unique across the store. OccurrenceCount only increases and
// LastSeen is monotonic non-decreasing.
type Signature struct {
	ID              string          `json:"id" db:"id"`
	Hash            string          `json:"hash" db:"hash"`
	AnomalyType     string          `json:"anomaly_type" db:"anomaly_type"`
	Severity        Severity        `json:"severity" db:"severity"`
	Status          SignatureStatus `json:"status" db:"status"`
	Pattern         string          `json:"pattern,omitempty" db:"pattern"` // JSON condition that produced it
	EndpointPattern string          `json:"endpoint_pattern" db:"endpoint_pattern"`
	ErrorClass      string          `json:"error_class,omitempty" db:"error_class"`
	RuleName        string          `json:"rule_name,omitempty" db:"rule_name"`
	OccurrenceCount int64           `json:"occurrence_count" db:"occurrence_count"`
	FirstSeen       time.Time       `json:"first_seen" db:"first_seen"`
	LastSeen        time.Time       `json:"last_seen" db:"last_seen"`
	MTTRSeconds     *float64        `json:"mttr_seconds,omitempty" db:"mttr_seconds"`
	MTBFHours       *float64        `json:"mtbf_hours,omitempty" db:"mtbf_hours"`
	Tags            []string        `json:"tags,omitempty" db:"-"`
	TagsRaw         string          `json:"-" db:"tags"` // JSON-encoded, stored in DB
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// SignatureSummary is the compact listing shape returned by the API.
type SignatureSummary struct {
	ID              string   `json:"id" db:"id"`
	Hash            string   `json:"hash" db:"hash"`
	AnomalyType     string   `json:"anomaly_type" db:"anomaly_type"`
	Severity        Severity `json:"severity" db:"severity"`
	Status          string   `json:"status" db:"status"`
	EndpointPattern string   `json:"endpoint_pattern" db:"endpoint_pattern"`
	OccurrenceCount int64    `json:"occurrence_count" db:"occurrence_count"`
}
