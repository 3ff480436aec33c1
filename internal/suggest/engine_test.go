package suggest

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/internal/rules"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPriorityScore(t *testing.T) {
	tests := []struct {
		name       string
		severity   models.Severity
		confidence float64
		count      int64
		want       int
	}{
		{"critical high confidence chronic", models.SeverityCritical, 0.9, 20, 10}, // 10*0.9*2.0 = 18, clamped
		{"critical first occurrence", models.SeverityCritical, 0.9, 1, 1},          // 10*0.9*0.1 = 0.9 -> round 1
		{"error mid frequency", models.SeverityError, 0.8, 10, 6},                  // 7*0.8*1.0 = 5.6 -> 6
		{"warning", models.SeverityWarning, 0.75, 10, 3},                           // 4*0.75*1.0 = 3
		{"info floors at one", models.SeverityInfo, 0.3, 1, 1},                     // 2*0.3*0.1 = 0.06 -> clamp 1
		{"frequency factor caps at two", models.SeverityError, 1.0, 1000, 10},      // 7*1.0*2.0 = 14 -> clamp 10
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriorityScore(tt.severity, tt.confidence, tt.count))
		})
	}
}

func newSignature(anomalyType string, severity models.Severity) *models.Signature {
	return &models.Signature{
		ID:              "sig-1",
		AnomalyType:     anomalyType,
		Severity:        severity,
		EndpointPattern: "/users/{id}",
		OccurrenceCount: 1,
	}
}

func TestGenerateDeclaredFix(t *testing.T) {
	e := NewEngine(testLogger())
	conf := rules.DefaultThresholds().Confidence
	sig := newSignature("connection_timeout", models.SeverityWarning)

	declared := []rules.RuleFix{{Type: models.FixTypeRetryPolicy, Suggestion: "Add reconnect backoff", Confidence: 0.85}}
	out := e.Generate(sig, declared, conf, time.Now().UTC())
	require.Len(t, out, 1)

	s := out[0]
	assert.Equal(t, models.FixTypeRetryPolicy, s.FixType)
	assert.Equal(t, "Add reconnect backoff", s.Description) // declared text overrides the template
	assert.Equal(t, 0.85, s.Confidence)
	assert.Equal(t, models.SuggestionStatusSuggested, s.Status)
	assert.NotEmpty(t, s.ID)
	assert.NotEmpty(t, s.ImplementationSteps)
	assert.False(t, s.AutoApplicable) // 0.85 < auto_apply 0.95
}

func TestGenerateSkipsLowConfidenceFixes(t *testing.T) {
	e := NewEngine(testLogger())
	conf := rules.DefaultThresholds().Confidence // minimum 0.30
	sig := newSignature("connection_timeout", models.SeverityInfo)

	declared := []rules.RuleFix{
		{Type: models.FixTypeCaching, Confidence: 0.2},
		{Type: models.FixTypeRetryPolicy, Confidence: 0.6},
	}
	out := e.Generate(sig, declared, conf, time.Now().UTC())
	require.Len(t, out, 1)
	assert.Equal(t, models.FixTypeRetryPolicy, out[0].FixType)
}

func TestGenerateUnknownFixTypeFallsBackToIndex(t *testing.T) {
	e := NewEngine(testLogger())
	conf := rules.DefaultThresholds().Confidence
	sig := newSignature("connection_timeout", models.SeverityInfo)

	declared := []rules.RuleFix{{Type: models.FixType("rewrite_in_rust"), Confidence: 0.6}}
	out := e.Generate(sig, declared, conf, time.Now().UTC())
	require.Len(t, out, 1)
	assert.Equal(t, models.FixTypeIndex, out[0].FixType)
}

func TestGenerateContextBundles(t *testing.T) {
	e := NewEngine(testLogger())
	conf := rules.DefaultThresholds().Confidence

	latency := e.Generate(newSignature("latency_outlier", models.SeverityWarning), nil, conf, time.Now().UTC())
	require.Len(t, latency, 1)
	assert.Equal(t, models.FixTypeCaching, latency[0].FixType)
	assert.Equal(t, 0.75, latency[0].Confidence)
	assert.Equal(t, 6, latency[0].PriorityScore)

	errorSev := e.Generate(newSignature("error_event", models.SeverityError), nil, conf, time.Now().UTC())
	require.Len(t, errorSev, 1)
	assert.Equal(t, models.FixTypeRetryPolicy, errorSev[0].FixType)
	assert.Equal(t, 0.80, errorSev[0].Confidence)

	schema := e.Generate(newSignature("schema_mismatch", models.SeverityWarning), nil, conf, time.Now().UTC())
	require.Len(t, schema, 1)
	assert.Equal(t, models.FixTypeSchemaUpdate, schema[0].FixType)
	assert.Equal(t, 8, schema[0].PriorityScore)

	// critical latency anomaly gets both the caching and retry bundles
	both := e.Generate(newSignature("latency_outlier", models.SeverityCritical), nil, conf, time.Now().UTC())
	require.Len(t, both, 2)
}

func TestGenerateNoSuggestionsForQuietSignature(t *testing.T) {
	e := NewEngine(testLogger())
	conf := rules.DefaultThresholds().Confidence

	out := e.Generate(newSignature("odd_pattern", models.SeverityInfo), nil, conf, time.Now().UTC())
	assert.Empty(t, out)
}

func TestEffectivenessScore(t *testing.T) {
	s := &models.FixSuggestion{Confidence: 0.8, PriorityScore: 6}
	assert.InDelta(t, 0.8*0.7+0.6*0.3, s.EffectivenessScore(), 1e-9)
}
