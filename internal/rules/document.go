package rules

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/streamwatch/streamwatch-backend/internal/models"
)

// Rule is one declarative anomaly rule from the rules document.
type Rule struct {
	Name        string                `yaml:"name" json:"name"`
	AnomalyType string                `yaml:"anomaly_type" json:"anomaly_type"`
	Severity    models.Severity       `yaml:"severity" json:"severity"`
	Condition   map[string]*Condition `yaml:"condition" json:"-"`
	Fixes       []RuleFix             `yaml:"fixes,omitempty" json:"fixes,omitempty"`
	Tags        []string              `yaml:"tags,omitempty" json:"tags,omitempty"`

	// ConditionRaw preserves the document form of the condition for storage on
	// the signature it produces.
	ConditionRaw map[string]any `yaml:"-" json:"condition,omitempty"`
}

// RuleFix declares a remediation the suggestion engine should emit when this
// rule creates a new signature.
type RuleFix struct {
	Type       models.FixType `yaml:"type" json:"type"`
	Suggestion string         `yaml:"suggestion" json:"suggestion"`
	Confidence float64        `yaml:"confidence" json:"confidence"`
}

// ConditionJSON renders the preserved condition for persistence.
func (r *Rule) ConditionJSON() string {
	if len(r.ConditionRaw) == 0 {
		return ""
	}
	b, err := json.Marshal(r.ConditionRaw)
	if err != nil {
		return ""
	}
	return string(b)
}

// LatencyThresholds are per-protocol p95 baselines in milliseconds.
type LatencyThresholds struct {
	WebsocketP95 float64 `yaml:"websocket_p95" json:"websocket_p95"`
	MQTTP95      float64 `yaml:"mqtt_p95" json:"mqtt_p95"`
	HTTPP95      float64 `yaml:"http_p95" json:"http_p95"`
}

// ErrorRateThresholds are fractional error-rate bounds.
type ErrorRateThresholds struct {
	WarningThreshold  float64 `yaml:"warning_threshold" json:"warning_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold" json:"critical_threshold"`
}

// RecurrenceThresholds bound how often a signature may recur before it is
// considered frequent or chronic.
type RecurrenceThresholds struct {
	FrequentThreshold int64 `yaml:"frequent_threshold" json:"frequent_threshold"`
	ChronicThreshold  int64 `yaml:"chronic_threshold" json:"chronic_threshold"`
}

// ConfidenceThresholds gate what the suggestion engine may do automatically.
type ConfidenceThresholds struct {
	AutoApply float64 `yaml:"auto_apply" json:"auto_apply"`
	Suggest   float64 `yaml:"suggest" json:"suggest"`
	Minimum   float64 `yaml:"minimum" json:"minimum"`
}

// Thresholds is the thresholds section of the rules document.
type Thresholds struct {
	Latency    LatencyThresholds    `yaml:"latency" json:"latency"`
	ErrorRate  ErrorRateThresholds  `yaml:"error_rate" json:"error_rate"`
	Recurrence RecurrenceThresholds `yaml:"recurrence" json:"recurrence"`
	Confidence ConfidenceThresholds `yaml:"confidence" json:"confidence"`
}

// DefaultThresholds returns the built-in fallback used when the document or
// its thresholds section is absent or malformed.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Latency: LatencyThresholds{
			WebsocketP95: 100,
			MQTTP95:      50,
			HTTPP95:      200,
		},
		ErrorRate: ErrorRateThresholds{
			WarningThreshold:  0.05,
			CriticalThreshold: 0.15,
		},
		Recurrence: RecurrenceThresholds{
			FrequentThreshold: 5,
			ChronicThreshold:  10,
		},
		Confidence: ConfidenceThresholds{
			AutoApply: 0.95,
			Suggest:   0.60,
			Minimum:   0.30,
		},
	}
}

// Ruleset is one immutable, fully parsed rules document. Readers share a
// Ruleset by pointer; reload builds a fresh one and swaps it in.
type Ruleset struct {
	Rules      []Rule
	Thresholds Thresholds
}

type document struct {
	Rules      []ruleNode      `yaml:"rules"`
	Thresholds *thresholdsNode `yaml:"thresholds"`
}

// thresholdsNode mirrors Thresholds with pointer fields so an explicitly
// configured zero is distinguishable from an absent key.
type thresholdsNode struct {
	Latency struct {
		WebsocketP95 *float64 `yaml:"websocket_p95"`
		MQTTP95      *float64 `yaml:"mqtt_p95"`
		HTTPP95      *float64 `yaml:"http_p95"`
	} `yaml:"latency"`
	ErrorRate struct {
		WarningThreshold  *float64 `yaml:"warning_threshold"`
		CriticalThreshold *float64 `yaml:"critical_threshold"`
	} `yaml:"error_rate"`
	Recurrence struct {
		FrequentThreshold *int64 `yaml:"frequent_threshold"`
		ChronicThreshold  *int64 `yaml:"chronic_threshold"`
	} `yaml:"recurrence"`
	Confidence struct {
		AutoApply *float64 `yaml:"auto_apply"`
		Suggest   *float64 `yaml:"suggest"`
		Minimum   *float64 `yaml:"minimum"`
	} `yaml:"confidence"`
}

type ruleNode struct {
	Rule         Rule
	conditionRaw map[string]any
}

func (n *ruleNode) UnmarshalYAML(node *yaml.Node) error {
	if err := node.Decode(&n.Rule); err != nil {
		return err
	}
	// Second decode keeps the document form of the condition around for
	// persistence on signatures.
	var shadow struct {
		Condition map[string]any `yaml:"condition"`
	}
	if err := node.Decode(&shadow); err == nil {
		n.conditionRaw = shadow.Condition
	}
	return nil
}

// ParseDocument parses a rules document. Rules missing a name or severity are
// rejected outright; threshold gaps are filled from the built-in defaults.
func ParseDocument(data []byte) (*Ruleset, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules document: %w", err)
	}

	rs := &Ruleset{Thresholds: DefaultThresholds()}
	if doc.Thresholds != nil {
		rs.Thresholds = mergeThresholds(*doc.Thresholds)
	}
	for _, node := range doc.Rules {
		r := node.Rule
		if r.Name == "" {
			return nil, fmt.Errorf("rule missing name")
		}
		if !r.Severity.Valid() {
			return nil, fmt.Errorf("rule %s: invalid severity %q", r.Name, r.Severity)
		}
		if r.AnomalyType == "" {
			r.AnomalyType = r.Name
		}
		r.ConditionRaw = node.conditionRaw
		rs.Rules = append(rs.Rules, r)
	}
	return rs, nil
}

// LoadFile reads and parses the rules document at path.
func LoadFile(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules document: %w", err)
	}
	return ParseDocument(data)
}

// mergeThresholds overlays a parsed thresholds section on the defaults.
// Only keys absent from the document fall back; explicit zeros stick.
func mergeThresholds(n thresholdsNode) Thresholds {
	t := DefaultThresholds()
	if n.Latency.WebsocketP95 != nil {
		t.Latency.WebsocketP95 = *n.Latency.WebsocketP95
	}
	if n.Latency.MQTTP95 != nil {
		t.Latency.MQTTP95 = *n.Latency.MQTTP95
	}
	if n.Latency.HTTPP95 != nil {
		t.Latency.HTTPP95 = *n.Latency.HTTPP95
	}
	if n.ErrorRate.WarningThreshold != nil {
		t.ErrorRate.WarningThreshold = *n.ErrorRate.WarningThreshold
	}
	if n.ErrorRate.CriticalThreshold != nil {
		t.ErrorRate.CriticalThreshold = *n.ErrorRate.CriticalThreshold
	}
	if n.Recurrence.FrequentThreshold != nil {
		t.Recurrence.FrequentThreshold = *n.Recurrence.FrequentThreshold
	}
	if n.Recurrence.ChronicThreshold != nil {
		t.Recurrence.ChronicThreshold = *n.Recurrence.ChronicThreshold
	}
	if n.Confidence.AutoApply != nil {
		t.Confidence.AutoApply = *n.Confidence.AutoApply
	}
	if n.Confidence.Suggest != nil {
		t.Confidence.Suggest = *n.Confidence.Suggest
	}
	if n.Confidence.Minimum != nil {
		t.Confidence.Minimum = *n.Confidence.Minimum
	}
	return t
}
