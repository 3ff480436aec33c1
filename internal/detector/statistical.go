package detector

import (
	"strings"

	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/internal/rules"
)

// Statistical anomaly types.
const (
	AnomalyLatencyOutlier = "latency_outlier"
	AnomalyLatencySpike   = "latency_spike"
	AnomalyErrorEvent     = "error_event"
)

// StatResult is one statistical detection, produced only when no declarative
// rule matched the event.
type StatResult struct {
	AnomalyType string
	Severity    models.Severity
	Confidence  float64
}

// StatisticalDetector flags outliers against protocol-aware latency baselines.
// The baseline is picked by substring match on the endpoint name and falls
// back to the HTTP baseline for unrecognized protocols.
type StatisticalDetector struct{}

// NewStatisticalDetector returns a stateless statistical detector; thresholds
// come from the active ruleset on every call so a reload takes effect
// immediately.
func NewStatisticalDetector() *StatisticalDetector {
	return &StatisticalDetector{}
}

// Baseline returns the p95 latency baseline in milliseconds for an endpoint.
func (d *StatisticalDetector) Baseline(endpoint string, t rules.LatencyThresholds) float64 {
	lower := strings.ToLower(endpoint)
	switch {
	case strings.Contains(lower, "ws") || strings.Contains(lower, "websocket"):
		return t.WebsocketP95
	case strings.Contains(lower, "mqtt"):
		return t.MQTTP95
	case strings.Contains(lower, "http"):
		return t.HTTPP95
	default:
		return t.HTTPP95
	}
}

// Detect applies the outlier policy in fixed order; only the first matching
// branch produces a result.
//
//  1. latency > 3x baseline: latency_outlier, error above 5x baseline else
//     warning, confidence latency/(9x baseline) capped at 1.0.
//  2. latency in (2x, 3x]: latency_spike, info, confidence 0.6.
//  3. outcome error/timeout: error_event, warning/error, confidence 0.8.
func (d *StatisticalDetector) Detect(event *models.StreamEvent, t rules.LatencyThresholds) *StatResult {
	baseline := d.Baseline(event.Endpoint, t)
	if baseline <= 0 {
		baseline = rules.DefaultThresholds().Latency.HTTPP95
	}
	outlierThreshold := baseline * 3

	if event.LatencyMS > outlierThreshold {
		severity := models.SeverityWarning
		if event.LatencyMS > baseline*5 {
			severity = models.SeverityError
		}
		confidence := event.LatencyMS / (outlierThreshold * 3)
		if confidence > 1.0 {
			confidence = 1.0
		}
		return &StatResult{AnomalyType: AnomalyLatencyOutlier, Severity: severity, Confidence: confidence}
	}

	if event.LatencyMS > baseline*2 {
		return &StatResult{AnomalyType: AnomalyLatencySpike, Severity: models.SeverityInfo, Confidence: 0.6}
	}

	switch event.Outcome {
	case models.OutcomeError:
		return &StatResult{AnomalyType: AnomalyErrorEvent, Severity: models.SeverityWarning, Confidence: 0.8}
	case models.OutcomeTimeout:
		return &StatResult{AnomalyType: AnomalyErrorEvent, Severity: models.SeverityError, Confidence: 0.8}
	}

	return nil
}
