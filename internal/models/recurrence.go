package models

import "time"

// SeverityTrend describes how a signature's severity is moving over its most
// recent occurrences.
type SeverityTrend string

const (
	TrendImproving SeverityTrend = "improving"
	TrendStable    SeverityTrend = "stable"
	TrendWorsening SeverityTrend = "worsening"
)

// RecurrenceTracker holds derived statistics for one signature. It is recomputed
// wholesale after every new occurrence, never partially patched.
type RecurrenceTracker struct {
	SignatureID            string        `json:"signature_id" db:"signature_id"`
	LastOccurrenceAt       time.Time     `json:"last_occurrence_at" db:"last_occurrence_at"`
	RecurrenceCount        int64         `json:"recurrence_count" db:"recurrence_count"`
	TypicalIntervalHours   *float64      `json:"typical_interval_hours,omitempty" db:"typical_interval_hours"`
	SeverityTrend          SeverityTrend `json:"severity_trend" db:"severity_trend"`
	FixesAttempted         int64         `json:"fixes_attempted" db:"fixes_attempted"`
	SuccessfulFixes        int64         `json:"successful_fixes" db:"successful_fixes"`
	FixSuccessRate         *float64      `json:"fix_success_rate,omitempty" db:"fix_success_rate"`
	RequiresAttention      bool          `json:"requires_attention" db:"requires_attention"`
	AlertThresholdExceeded bool          `json:"alert_threshold_exceeded" db:"alert_threshold_exceeded"`
	UpdatedAt              time.Time     `json:"updated_at" db:"updated_at"`
}
