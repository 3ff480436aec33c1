package detector

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
)

var (
	numericSegment = regexp.MustCompile(`^\d+$`)
	uuidSegment    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hexSegment     = regexp.MustCompile(`^[0-9a-fA-F]{8,}$`)
)

// NormalizeEndpoint replaces positional identifiers in a path with
// placeholders so occurrences of the same logical endpoint dedup together:
// purely numeric segments become {id}, 36-character hyphenated hex segments
// become {uuid}, and 8+ character hex segments become {hash}.
func NormalizeEndpoint(endpoint string) string {
	if endpoint == "" {
		return endpoint
	}
	segments := strings.Split(endpoint, "/")
	for i, seg := range segments {
		switch {
		case seg == "":
		case numericSegment.MatchString(seg):
			segments[i] = "{id}"
		case uuidSegment.MatchString(seg):
			segments[i] = "{uuid}"
		case hexSegment.MatchString(seg):
			segments[i] = "{hash}"
		}
	}
	return strings.Join(segments, "/")
}

// SignatureHash computes the stable dedup digest for an anomaly pattern. The
// digest covers {anomaly_type, normalized_endpoint, error_class, rule_name}
// serialized with sorted keys, so insertion order can never change the hash.
func SignatureHash(anomalyType, normalizedEndpoint, errorClass, ruleName string) string {
	// encoding/json sorts map keys, which gives the canonical form.
	payload, _ := json.Marshal(map[string]string{
		"anomaly_type":        anomalyType,
		"normalized_endpoint": normalizedEndpoint,
		"error_class":         errorClass,
		"rule_name":           ruleName,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
