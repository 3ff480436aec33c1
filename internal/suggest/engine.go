// Package suggest scores and generates templated fix suggestions for newly
// created anomaly signatures.
package suggest

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/internal/rules"
)

// Engine generates suggestions from rule-declared fixes plus context bundles
// derived from the signature itself.
type Engine struct {
	logger *slog.Logger
}

// NewEngine returns a suggestion engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// PriorityScore computes the urgency rank for a suggestion:
// clamp(round(severity_weight * confidence * min(occurrences/10, 2.0)), 1, 10).
func PriorityScore(severity models.Severity, confidence float64, occurrenceCount int64) int {
	factor := math.Min(float64(occurrenceCount)/10.0, 2.0)
	score := int(math.Round(severity.SuggestionWeight() * confidence * factor))
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

// Generate builds the suggestion list for a newly created signature. Declared
// fixes below the minimum confidence threshold are skipped; a fix with an
// unmapped type falls back to the index template. Generation is best-effort,
// a bad declared fix is logged and the rest of the list still comes back.
func (e *Engine) Generate(sig *models.Signature, declared []rules.RuleFix, conf rules.ConfidenceThresholds, now time.Time) []*models.FixSuggestion {
	var out []*models.FixSuggestion

	for _, fix := range declared {
		if fix.Confidence < conf.Minimum {
			e.logger.Debug("skipping low-confidence declared fix", "signature", sig.ID, "fix_type", fix.Type, "confidence", fix.Confidence)
			continue
		}
		if fix.Confidence < 0 || fix.Confidence > 1 {
			e.logger.Warn("declared fix has out-of-range confidence, skipping", "signature", sig.ID, "fix_type", fix.Type, "confidence", fix.Confidence)
			continue
		}
		ft, tpl := templateFor(fix.Type)
		s := e.fromTemplate(sig, ft, tpl, fix.Confidence, PriorityScore(sig.Severity, fix.Confidence, sig.OccurrenceCount), conf, now)
		if fix.Suggestion != "" {
			s.Description = fix.Suggestion
		}
		out = append(out, s)
	}

	out = append(out, e.contextSuggestions(sig, conf, now)...)
	return out
}

// contextSuggestions adds bundles inferred from the anomaly itself, on top of
// whatever the rule declared.
func (e *Engine) contextSuggestions(sig *models.Signature, conf rules.ConfidenceThresholds, now time.Time) []*models.FixSuggestion {
	var out []*models.FixSuggestion
	anomaly := strings.ToLower(sig.AnomalyType)

	if strings.Contains(anomaly, "latency") {
		ft, tpl := templateFor(models.FixTypeCaching)
		out = append(out, e.fromTemplate(sig, ft, tpl, 0.75, 6, conf, now))
	}
	if sig.Severity == models.SeverityError || sig.Severity == models.SeverityCritical {
		ft, tpl := templateFor(models.FixTypeRetryPolicy)
		out = append(out, e.fromTemplate(sig, ft, tpl, 0.80, 7, conf, now))
	}
	if strings.Contains(anomaly, "schema") {
		ft, tpl := templateFor(models.FixTypeSchemaUpdate)
		out = append(out, e.fromTemplate(sig, ft, tpl, 0.85, 8, conf, now))
	}
	return out
}

func (e *Engine) fromTemplate(sig *models.Signature, ft models.FixType, tpl template, confidence float64, priority int, conf rules.ConfidenceThresholds, now time.Time) *models.FixSuggestion {
	endpoint := sig.EndpointPattern
	if endpoint == "" {
		endpoint = sig.AnomalyType
	}
	return &models.FixSuggestion{
		ID:                  uuid.New().String(),
		SignatureID:         sig.ID,
		Title:               fmt.Sprintf(tpl.Title, endpoint),
		Description:         fmt.Sprintf(tpl.Description, endpoint),
		FixType:             ft,
		Confidence:          confidence,
		PriorityScore:       priority,
		PatchTemplate:       tpl.PatchTemplate,
		ImplementationSteps: tpl.Steps,
		Status:              models.SuggestionStatusSuggested,
		AutoApplicable:      confidence >= conf.AutoApply && tpl.Risk == models.RiskLow,
		RiskLevel:           tpl.Risk,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}
