package normalizer

import (
	"errors"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
)

func TestNormalize_Emails(t *testing.T) {
	in := conversation.Input{
		ID:   "conv-1",
		Type: conversation.TypeEmail,
		Emails: []conversation.EmailMessage{
			{ID: "e1", From: "a", Body: "one two three", Timestamp: "2024-03-01T09:00:00Z"},
			{ID: "e2", From: "b", Body: "  four\tfive\n six  ", Timestamp: "2024-03-01T11:30:00Z"},
		},
	}
	now := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	res, err := Normalize(in, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Emails) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(res.Emails))
	}

	first, second := res.Emails[0], res.Emails[1]
	if first.Position != 1 || second.Position != 2 {
		t.Errorf("unexpected positions %d, %d", first.Position, second.Position)
	}
	if first.GapFromPrevious != nil {
		t.Errorf("expected nil gap for first email, got %v", *first.GapFromPrevious)
	}
	if second.GapFromPrevious == nil || *second.GapFromPrevious != 150*time.Minute {
		t.Errorf("expected 2h30m gap, got %v", second.GapFromPrevious)
	}
	if first.WordCount != 3 || second.WordCount != 3 {
		t.Errorf("expected word counts 3/3, got %d/%d", first.WordCount, second.WordCount)
	}

	if res.Metadata.TotalEmails != 2 || res.Metadata.TotalTranscriptEntries != 0 {
		t.Errorf("unexpected totals %+v", res.Metadata)
	}
	if res.Metadata.AvgEmailWords != 3 {
		t.Errorf("expected avg email words 3, got %f", res.Metadata.AvgEmailWords)
	}
	if res.Metadata.AvgTranscriptWords != 0 {
		t.Errorf("expected avg transcript words 0, got %f", res.Metadata.AvgTranscriptWords)
	}
	if !res.Metadata.ProcessedAt.Equal(now) {
		t.Errorf("expected processedAt %v, got %v", now, res.Metadata.ProcessedAt)
	}
}

func TestNormalize_TranscriptGapsAreIndependentOfEmails(t *testing.T) {
	dur := 42.5
	in := conversation.Input{
		Emails: []conversation.EmailMessage{
			{ID: "e1", Body: "hello", Timestamp: "2024-03-01T08:00:00Z"},
		},
		Transcript: []conversation.TranscriptTurn{
			{ID: "t1", Speaker: "A", Text: "morning", Timestamp: "2024-03-01T10:00:00Z", DurationSeconds: &dur},
			{ID: "t2", Speaker: "B", Text: "morning to you", Timestamp: "2024-03-01T10:00:30Z"},
		},
	}

	res, err := Normalize(in, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Transcript[0].GapFromPrevious != nil {
		t.Error("first transcript turn must have no gap even when emails precede it")
	}
	if g := res.Transcript[1].GapFromPrevious; g == nil || *g != 30*time.Second {
		t.Errorf("expected 30s gap, got %v", g)
	}
	if res.Transcript[0].SpeakingTime != 42.5 {
		t.Errorf("expected speaking time 42.5, got %f", res.Transcript[0].SpeakingTime)
	}
	if res.Transcript[1].SpeakingTime != 0 {
		t.Errorf("expected speaking time 0, got %f", res.Transcript[1].SpeakingTime)
	}
	if res.Metadata.AvgTranscriptWords != 2 {
		t.Errorf("expected avg transcript words 2, got %f", res.Metadata.AvgTranscriptWords)
	}
}

func TestNormalize_MalformedTimestamp(t *testing.T) {
	in := conversation.Input{
		Emails: []conversation.EmailMessage{
			{ID: "e1", Body: "hello", Timestamp: "2024-03-01T08:00:00Z"},
			{ID: "e2", Body: "hello", Timestamp: "yesterday at noon"},
		},
	}

	_, err := Normalize(in, time.Now())
	if err == nil {
		t.Fatal("expected error for malformed timestamp")
	}
	var ve *conversation.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *conversation.ValidationError, got %T", err)
	}
	if ve.Field != "emails[1].timestamp" {
		t.Errorf("expected field emails[1].timestamp, got %q", ve.Field)
	}
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one  two", 2},
		{"line one\nline two", 4},
	}
	for _, tt := range tests {
		if got := WordCount(tt.in); got != tt.want {
			t.Errorf("WordCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
