package models

// Severity classifies how serious an anomaly is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Score returns the rank used for match ordering and trend comparison:
// critical(4) > error(3) > warning(2) > info(1). Unknown severities rank 0.
func (s Severity) Score() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// SuggestionWeight returns the severity weight used by the fix suggestion
// priority formula.
func (s Severity) SuggestionWeight() float64 {
	switch s {
	case SeverityCritical:
		return 10
	case SeverityError:
		return 7
	case SeverityWarning:
		return 4
	default:
		return 2
	}
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	return s.Score() > 0
}
