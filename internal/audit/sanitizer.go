// Package audit implements the audit trail core: payload sanitization,
// request classification, the buffered write queue, and CSV export. The
// interceptor middleware and audit API handlers are thin layers over this
// package so each piece stays independently testable.
package audit

import "strings"

// denylist holds field names that must never appear in a persisted payload,
// compared case-insensitively against the lowercased key.
var denylist = map[string]bool{
	"password": true,
	"token":    true,
	"secret":   true,
}

// Sanitize returns a shallow copy of payload with credential-bearing keys
// removed. Matching is case-insensitive. A nil payload yields nil.
//
// Only top-level keys are inspected: nothing the interceptor logs nests
// secrets deeper than that, so recursing is deliberately out of scope.
func Sanitize(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}

	sanitized := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if denylist[strings.ToLower(k)] {
			continue
		}
		sanitized[k] = v
	}
	return sanitized
}
