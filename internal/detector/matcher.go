package detector

import (
	"log/slog"
	"sort"

	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/internal/rules"
)

// RuleMatch is one declarative rule that matched an event.
type RuleMatch struct {
	Rule       rules.Rule
	Confidence float64
}

// Matcher evaluates declarative rules against stream events.
type Matcher struct {
	logger *slog.Logger
}

// NewMatcher returns a matcher that logs malformed conditions through logger.
func NewMatcher(logger *slog.Logger) *Matcher {
	return &Matcher{logger: logger}
}

// Match reports whether every field condition of the rule passes against the
// event (logical AND). A malformed condition makes the whole rule a non-match;
// it never aborts evaluation of other rules.
func (m *Matcher) Match(event *models.StreamEvent, rule *rules.Rule) bool {
	if len(rule.Condition) == 0 {
		return false
	}
	for field, cond := range rule.Condition {
		if cond == nil {
			m.logger.Warn("rule condition missing body, treating as non-match", "rule", rule.Name, "field", field)
			return false
		}
		if err := cond.Err(); err != nil {
			m.logger.Warn("malformed rule condition, treating as non-match", "rule", rule.Name, "field", field, "error", err)
			return false
		}
		value, present := event.Field(field)
		if !cond.Matches(value, present) {
			return false
		}
	}
	return true
}

// EvaluateAll collects every matching rule and ranks the result descending by
// severity. Ties keep declaration order, so the first-declared rule wins among
// equals.
func (m *Matcher) EvaluateAll(event *models.StreamEvent, ruleset *rules.Ruleset) []RuleMatch {
	var matches []RuleMatch
	for i := range ruleset.Rules {
		rule := &ruleset.Rules[i]
		if m.Match(event, rule) {
			matches = append(matches, RuleMatch{Rule: *rule, Confidence: 1.0})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Rule.Severity.Score() > matches[j].Rule.Severity.Score()
	})
	return matches
}
