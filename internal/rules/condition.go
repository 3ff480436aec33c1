package rules

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Condition is one field constraint inside a rule's condition map. A bare
// scalar in the document is a literal equality; a mapping may carry the
// operators gt, lt, eq and contains, all of which must pass.
//
// A malformed condition is not a load failure: it is recorded via Err so the
// matcher can treat the owning rule as a non-match and keep evaluating the
// remaining rules.
type Condition struct {
	Gt       *float64
	Lt       *float64
	Eq       any
	Contains []string // any-of, case-insensitive
	Literal  any

	hasEq      bool
	hasLiteral bool
	parseErr   error
}

// Err returns the parse error for a malformed condition, or nil.
func (c *Condition) Err() error {
	return c.parseErr
}

// UnmarshalYAML decodes either a literal value or an operator mapping.
// Malformed operator usage is captured in Err rather than failing the whole
// document.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		var v any
		if err := node.Decode(&v); err != nil {
			c.parseErr = err
			return nil
		}
		c.Literal = v
		c.hasLiteral = true
		return nil
	}

	var raw map[string]yaml.Node
	if err := node.Decode(&raw); err != nil {
		c.parseErr = err
		return nil
	}
	if len(raw) == 0 {
		c.parseErr = fmt.Errorf("empty condition object")
		return nil
	}
	for op, val := range raw {
		switch op {
		case "gt":
			var f float64
			if err := val.Decode(&f); err != nil {
				c.parseErr = fmt.Errorf("gt bound must be numeric: %w", err)
				return nil
			}
			c.Gt = &f
		case "lt":
			var f float64
			if err := val.Decode(&f); err != nil {
				c.parseErr = fmt.Errorf("lt bound must be numeric: %w", err)
				return nil
			}
			c.Lt = &f
		case "eq":
			var v any
			if err := val.Decode(&v); err != nil {
				c.parseErr = err
				return nil
			}
			c.Eq = v
			c.hasEq = true
		case "contains":
			var many []string
			if err := val.Decode(&many); err == nil {
				c.Contains = many
				continue
			}
			var one string
			if err := val.Decode(&one); err != nil {
				c.parseErr = fmt.Errorf("contains expects a string or list of strings")
				return nil
			}
			c.Contains = []string{one}
		default:
			c.parseErr = fmt.Errorf("unknown condition operator %q", op)
			return nil
		}
	}
	return nil
}

// Matches evaluates the condition against a field value. present reports
// whether the event carries the field at all.
func (c *Condition) Matches(value any, present bool) bool {
	if c.parseErr != nil {
		return false
	}
	if c.hasLiteral {
		return present && looseEqual(c.Literal, value)
	}
	if c.Gt != nil {
		// Absent or falsy field values never satisfy a numeric bound.
		f, ok := toFloat(value)
		if !present || !ok || f == 0 {
			return false
		}
		if !(f > *c.Gt) {
			return false
		}
	}
	if c.Lt != nil {
		f, ok := toFloat(value)
		if !present || !ok || f == 0 {
			return false
		}
		if !(f < *c.Lt) {
			return false
		}
	}
	if c.hasEq {
		if !present || !looseEqual(c.Eq, value) {
			return false
		}
	}
	if len(c.Contains) > 0 {
		if !present {
			return false
		}
		haystack := strings.ToLower(stringify(value))
		found := false
		for _, sub := range c.Contains {
			if strings.Contains(haystack, strings.ToLower(sub)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// looseEqual compares numerics numerically and everything else by string form,
// so a rule can say `http_status_code: 500` or `outcome: error` without caring
// about the decoded Go type.
func looseEqual(want, got any) bool {
	wf, wok := toFloat(want)
	gf, gok := toFloat(got)
	if wok && gok {
		return wf == gf
	}
	return stringify(want) == stringify(got)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
