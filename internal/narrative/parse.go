package narrative

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports a provider reply that is not usable.
type ParseError struct {
	Kind   string // sentiment | conflict | insight
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Kind, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CleanJSON strips surrounding code fences (``` or ```json) and whitespace.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimPrefix(s, "JSON")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseSentiment decodes and validates a sentiment reply.
func ParseSentiment(raw string) (*SentimentResult, error) {
	const kind = "sentiment"
	var res SentimentResult
	if err := decode(kind, raw, &res, "overallSentiment", "sentimentTrend", "emotionalVolatility", "individualItems", "emotionalPattern"); err != nil {
		return nil, err
	}
	if err := inRange(kind, "overallSentiment", res.OverallSentiment, 0, 100); err != nil {
		return nil, err
	}
	if err := inRange(kind, "emotionalVolatility", res.EmotionalVolatility, 0, 100); err != nil {
		return nil, err
	}
	switch res.SentimentTrend {
	case "improving", "declining", "stable":
	default:
		return nil, &ParseError{Kind: kind, Reason: fmt.Sprintf("unknown sentimentTrend %q", res.SentimentTrend)}
	}
	return &res, nil
}

// ParseConflict decodes and validates a conflict reply.
func ParseConflict(raw string) (*ConflictResult, error) {
	const kind = "conflict"
	var res ConflictResult
	if err := decode(kind, raw, &res, "conflictLevel", "conflictType", "escalationPattern", "riskFlags", "conflictIndicators", "relationshipHealth", "relationshipDynamics"); err != nil {
		return nil, err
	}
	if err := inRange(kind, "conflictLevel", res.ConflictLevel, 0, 10); err != nil {
		return nil, err
	}
	if err := inRange(kind, "relationshipHealth", res.RelationshipHealth, 0, 100); err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.ConflictType) == "" {
		return nil, &ParseError{Kind: kind, Reason: "conflictType is empty"}
	}
	if strings.TrimSpace(res.EscalationPattern) == "" {
		return nil, &ParseError{Kind: kind, Reason: "escalationPattern is empty"}
	}
	return &res, nil
}

// ParseInsight decodes and validates an insight reply.
func ParseInsight(raw string) (*InsightResult, error) {
	const kind = "insight"
	var res InsightResult
	fields, err := decodeFields(kind, raw, &res, "summary", "insights")
	if err != nil {
		return nil, err
	}
	if _, err := requireFields(kind, fields["insights"], "insights.", "strengths", "concerns", "recommendations"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Summary) == "" {
		return nil, &ParseError{Kind: kind, Reason: "summary is empty"}
	}
	return &res, nil
}

func decode(kind, raw string, dst any, required ...string) error {
	_, err := decodeFields(kind, raw, dst, required...)
	return err
}

// decodeFields checks the required top-level keys, decodes into dst and
// returns the raw top-level fields for nested checks.
func decodeFields(kind, raw string, dst any, required ...string) (map[string]json.RawMessage, error) {
	cleaned := CleanJSON(raw)
	fields, err := requireFields(kind, json.RawMessage(cleaned), "", required...)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		return nil, &ParseError{Kind: kind, Reason: "reply has unexpected shape", Err: err}
	}
	return fields, nil
}

// requireFields fails unless obj is a JSON object carrying every name with a
// non-null value.
func requireFields(kind string, obj json.RawMessage, prefix string, names ...string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(obj, &fields); err != nil || fields == nil {
		reason := "reply is not a JSON object"
		if prefix != "" {
			reason = strings.TrimSuffix(prefix, ".") + " is not a JSON object"
		}
		return nil, &ParseError{Kind: kind, Reason: reason, Err: err}
	}
	for _, name := range names {
		v, ok := fields[name]
		if !ok || string(v) == "null" {
			return nil, &ParseError{Kind: kind, Reason: "missing required field " + prefix + name}
		}
	}
	return fields, nil
}

func inRange(kind, field string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return &ParseError{Kind: kind, Reason: fmt.Sprintf("%s %v outside [%v, %v]", field, v, lo, hi)}
	}
	return nil
}
