// Package redact strips credential-bearing values from event payloads before
// they are persisted or broadcast.
package redact

import "strings"

const redactedValue = "***REDACTED***"

// sensitiveKeys are matched as substrings of lowercased payload keys.
var sensitiveKeys = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"api_key",
	"api-key",
	"apikey",
	"authorization",
	"cookie",
	"credential",
	"private_key",
}

// Payload replaces sensitive values in a payload map in place, recursing into
// nested maps and slice elements. Key names are kept so operators can see
// which fields existed.
func Payload(payload map[string]interface{}) {
	if payload == nil {
		return
	}
	for k, v := range payload {
		if isSensitiveKey(k) {
			payload[k] = redactedValue
			continue
		}
		redactValue(v)
	}
}

func redactValue(v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		Payload(val)
	case []interface{}:
		for _, elem := range val {
			redactValue(elem)
		}
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
