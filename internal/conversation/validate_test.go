package conversation

import (
	"errors"
	"testing"
)

func emailThread() Input {
	return Input{
		ID:           "conv-001",
		Type:         TypeEmail,
		Participants: []string{"alice@acme.io", "bob@acme.io"},
		Emails: []EmailMessage{
			{
				ID:        "email-001",
				From:      "alice@acme.io",
				To:        []string{"bob@acme.io"},
				Subject:   "Quarterly plan",
				Body:      "Can you review the draft?",
				Timestamp: "2024-03-01T09:00:00Z",
			},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	in := emailThread()
	in.ApplyDefaults()
	if err := in.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Emails[0].Priority != PriorityNormal {
		t.Errorf("expected default priority normal, got %q", in.Emails[0].Priority)
	}
	if in.Metadata.Source != "manual" {
		t.Errorf("expected default source manual, got %q", in.Metadata.Source)
	}
	if in.Metadata.Version != "1.0" {
		t.Errorf("expected default version 1.0, got %q", in.Metadata.Version)
	}
}

func TestValidate_Invalid(t *testing.T) {
	negative := -3.0

	tests := []struct {
		name   string
		mutate func(*Input)
		field  string
	}{
		{"missing id", func(in *Input) { in.ID = "" }, "conversationId"},
		{"bad type", func(in *Input) { in.Type = "chat" }, "type"},
		{"one participant", func(in *Input) { in.Participants = []string{"alice@acme.io"} }, "participants"},
		{"duplicate participants", func(in *Input) { in.Participants = []string{"a", "a"} }, "participants"},
		{"empty participant", func(in *Input) { in.Participants = []string{"a", ""} }, "participants[1]"},
		{"email type without emails", func(in *Input) { in.Emails = nil }, "emails"},
		{"meeting type without transcript", func(in *Input) { in.Type = TypeMeeting }, "transcript"},
		{"mixed type without transcript", func(in *Input) { in.Type = TypeMixed }, "transcript"},
		{"email without recipients", func(in *Input) { in.Emails[0].To = nil }, "emails[0].to"},
		{"email with blank body", func(in *Input) { in.Emails[0].Body = "   " }, "emails[0].body"},
		{"email without timestamp", func(in *Input) { in.Emails[0].Timestamp = "" }, "emails[0].timestamp"},
		{"unknown priority", func(in *Input) { in.Emails[0].Priority = "asap" }, "emails[0].priority"},
		{"unknown source", func(in *Input) { in.Metadata.Source = "fax" }, "metadata.source"},
		{"negative turn duration", func(in *Input) {
			in.Type = TypeMixed
			in.Transcript = []TranscriptTurn{{ID: "t1", Speaker: "Alice", Text: "hi", Timestamp: "2024-03-01T09:00:00Z", DurationSeconds: &negative}}
		}, "transcript[0].duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := emailThread()
			tt.mutate(&in)

			err := in.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %q, got %q (%v)", tt.field, ve.Field, err)
			}
		})
	}
}

func TestValidate_MeetingOnlyNeedsTranscript(t *testing.T) {
	in := Input{
		ID:           "meeting-001",
		Type:         TypeMeeting,
		Participants: []string{"Alice", "Bob"},
		Transcript: []TranscriptTurn{
			{ID: "t1", Speaker: "Alice", Text: "Morning all", Timestamp: "2024-03-01T09:00:00Z"},
		},
	}
	if err := in.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
