package conversation

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError reports a malformed field of an Input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

var validSources = map[string]bool{
	"outlook": true,
	"gmail":   true,
	"teams":   true,
	"zoom":    true,
	"manual":  true,
}

// ApplyDefaults fills optional fields: priority normal, source manual,
// version 1.0. Emails are copied so the caller's slice is left untouched.
func (in *Input) ApplyDefaults() {
	in.Emails = slices.Clone(in.Emails)
	for i := range in.Emails {
		if in.Emails[i].Priority == "" {
			in.Emails[i].Priority = PriorityNormal
		}
	}
	if in.Metadata.Source == "" {
		in.Metadata.Source = "manual"
	}
	if in.Metadata.Version == "" {
		in.Metadata.Version = "1.0"
	}
}

// Validate checks structural invariants. Timestamps are only checked for
// presence here; parsing happens during normalization.
func (in *Input) Validate() error {
	if strings.TrimSpace(in.ID) == "" {
		return invalid("conversationId", "is required")
	}

	switch in.Type {
	case TypeEmail, TypeMeeting, TypeMixed:
	default:
		return invalid("type", "must be one of email, meeting, mixed (got %q)", in.Type)
	}

	seen := make(map[string]bool, len(in.Participants))
	for i, p := range in.Participants {
		if strings.TrimSpace(p) == "" {
			return invalid(fmt.Sprintf("participants[%d]", i), "must not be empty")
		}
		seen[p] = true
	}
	if len(seen) < 2 {
		return invalid("participants", "at least 2 distinct participants required")
	}

	needEmails := in.Type == TypeEmail || in.Type == TypeMixed
	needTranscript := in.Type == TypeMeeting || in.Type == TypeMixed
	if needEmails && len(in.Emails) == 0 {
		return invalid("emails", "at least one email required for type %s", in.Type)
	}
	if needTranscript && len(in.Transcript) == 0 {
		return invalid("transcript", "at least one transcript entry required for type %s", in.Type)
	}

	for i, e := range in.Emails {
		if err := e.validate(fmt.Sprintf("emails[%d]", i)); err != nil {
			return err
		}
	}
	for i, t := range in.Transcript {
		if err := t.validate(fmt.Sprintf("transcript[%d]", i)); err != nil {
			return err
		}
	}

	if in.Metadata.Source != "" && !validSources[in.Metadata.Source] {
		return invalid("metadata.source", "unknown source %q", in.Metadata.Source)
	}
	if d := in.Metadata.MeetingDuration; d != nil && *d <= 0 {
		return invalid("metadata.meetingDuration", "must be positive")
	}
	return nil
}

func (e EmailMessage) validate(field string) error {
	switch {
	case e.ID == "":
		return invalid(field+".id", "is required")
	case e.From == "":
		return invalid(field+".from", "is required")
	case len(e.To) == 0:
		return invalid(field+".to", "at least one recipient required")
	case e.Subject == "":
		return invalid(field+".subject", "is required")
	case strings.TrimSpace(e.Body) == "":
		return invalid(field+".body", "is required")
	case e.Timestamp == "":
		return invalid(field+".timestamp", "is required")
	}
	switch e.Priority {
	case "", PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
	default:
		return invalid(field+".priority", "unknown priority %q", e.Priority)
	}
	return nil
}

func (t TranscriptTurn) validate(field string) error {
	switch {
	case t.ID == "":
		return invalid(field+".id", "is required")
	case t.Speaker == "":
		return invalid(field+".speaker", "is required")
	case strings.TrimSpace(t.Text) == "":
		return invalid(field+".text", "is required")
	case t.Timestamp == "":
		return invalid(field+".timestamp", "is required")
	}
	if t.DurationSeconds != nil && *t.DurationSeconds <= 0 {
		return invalid(field+".duration", "must be positive")
	}
	return nil
}
