package models

import "time"

// FixType is the closed set of remediation categories a suggestion can carry.
type FixType string

const (
	FixTypeIndex          FixType = "index"
	FixTypeSerializer     FixType = "serializer"
	FixTypeRateLimit      FixType = "rate_limit"
	FixTypeConnectionPool FixType = "connection_pool"
	FixTypeCaching        FixType = "caching"
	FixTypeRetryPolicy    FixType = "retry_policy"
	FixTypeSchemaUpdate   FixType = "schema_update"
	FixTypeConfiguration  FixType = "configuration"
	FixTypeCodeFix        FixType = "code_fix"
	FixTypeInfrastructure FixType = "infrastructure"
)

// SuggestionStatus is the review state of a fix suggestion.
type SuggestionStatus string

const (
	SuggestionStatusSuggested SuggestionStatus = "suggested"
	SuggestionStatusApproved  SuggestionStatus = "approved"
	SuggestionStatusRejected  SuggestionStatus = "rejected"
	SuggestionStatusApplied   SuggestionStatus = "applied"
	SuggestionStatusVerified  SuggestionStatus = "verified"
)

// RiskLevel grades how dangerous it is to apply a suggestion.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// FixSuggestion is a scored, templated remediation generated once when a
// signature is first created. Suggestions transition status via explicit
// approve/reject/apply/verify actions and are never auto-deleted.
type FixSuggestion struct {
	ID                  string           `json:"id" db:"id"`
	SignatureID         string           `json:"signature_id" db:"signature_id"`
	Title               string           `json:"title" db:"title"`
	Description         string           `json:"description" db:"description"`
	FixType             FixType          `json:"fix_type" db:"fix_type"`
	Confidence          float64          `json:"confidence" db:"confidence"`         // [0,1]
	PriorityScore       int              `json:"priority_score" db:"priority_score"` // [1,10]
	PatchTemplate       string           `json:"patch_template,omitempty" db:"patch_template"`
	ImplementationSteps []string         `json:"implementation_steps,omitempty" db:"-"`
	StepsRaw            string           `json:"-" db:"implementation_steps"` // JSON-encoded, stored in DB
	Status              SuggestionStatus `json:"status" db:"status"`
	AutoApplicable      bool             `json:"auto_applicable" db:"auto_applicable"`
	RiskLevel           RiskLevel        `json:"risk_level" db:"risk_level"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at" db:"updated_at"`
}

// EffectivenessScore blends confidence and priority into one ranking value.
func (s *FixSuggestion) EffectivenessScore() float64 {
	return s.Confidence*0.7 + (float64(s.PriorityScore)/10.0)*0.3
}

// SuggestionRank is one row of the summary's suggestion effectiveness ranking.
type SuggestionRank struct {
	ID            string           `json:"id" db:"id"`
	SignatureID   string           `json:"signature_id" db:"signature_id"`
	Title         string           `json:"title" db:"title"`
	FixType       FixType          `json:"fix_type" db:"fix_type"`
	Status        SuggestionStatus `json:"status" db:"status"`
	Effectiveness float64          `json:"effectiveness_score" db:"effectiveness_score"`
}

// FixAction is the append-only audit record of applying a suggestion to an
// occurrence.
type FixAction struct {
	ID           string     `json:"id" db:"id"`
	SuggestionID string     `json:"suggestion_id" db:"suggestion_id"`
	OccurrenceID string     `json:"occurrence_id" db:"occurrence_id"`
	AppliedBy    string     `json:"applied_by,omitempty" db:"applied_by"`
	Notes        string     `json:"notes,omitempty" db:"notes"`
	Successful   *bool      `json:"successful,omitempty" db:"successful"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
