package normalizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
)

// NormalizedEmail is an email with its derived fields.
type NormalizedEmail struct {
	conversation.EmailMessage
	SentAt          time.Time
	WordCount       int
	Position        int            // 1-based arrival order among emails
	GapFromPrevious *time.Duration // nil for the first email
}

// NormalizedTurn is a transcript turn with its derived fields.
type NormalizedTurn struct {
	conversation.TranscriptTurn
	SpokenAt        time.Time
	WordCount       int
	Position        int
	GapFromPrevious *time.Duration
	SpeakingTime    float64 // seconds, 0 when the turn carried no duration
}

// Metadata aggregates counts over a normalized conversation.
type Metadata struct {
	TotalEmails            int       `json:"totalEmails"`
	TotalTranscriptEntries int       `json:"totalTranscriptEntries"`
	AvgEmailWords          float64   `json:"avgEmailLength"`
	AvgTranscriptWords     float64   `json:"avgTranscriptLength"`
	ProcessedAt            time.Time `json:"processedAt"`
}

// Result is the uniform view of a conversation consumed by the analysis stages.
type Result struct {
	Emails     []NormalizedEmail
	Transcript []NormalizedTurn
	Metadata   Metadata
}

// Normalize converts raw emails and transcript turns into normalized
// records. A malformed timestamp anywhere fails the whole conversation.
func Normalize(in conversation.Input, now time.Time) (*Result, error) {
	res := &Result{
		Emails:     make([]NormalizedEmail, 0, len(in.Emails)),
		Transcript: make([]NormalizedTurn, 0, len(in.Transcript)),
	}

	var prev time.Time
	emailWords := 0
	for i, e := range in.Emails {
		ts, err := parseTimestamp(fmt.Sprintf("emails[%d].timestamp", i), e.Timestamp)
		if err != nil {
			return nil, err
		}
		n := NormalizedEmail{
			EmailMessage: e,
			SentAt:       ts,
			WordCount:    WordCount(e.Body),
			Position:     i + 1,
		}
		if i > 0 {
			gap := ts.Sub(prev)
			n.GapFromPrevious = &gap
		}
		prev = ts
		emailWords += n.WordCount
		res.Emails = append(res.Emails, n)
	}

	turnWords := 0
	for i, t := range in.Transcript {
		ts, err := parseTimestamp(fmt.Sprintf("transcript[%d].timestamp", i), t.Timestamp)
		if err != nil {
			return nil, err
		}
		n := NormalizedTurn{
			TranscriptTurn: t,
			SpokenAt:       ts,
			WordCount:      WordCount(t.Text),
			Position:       i + 1,
		}
		if t.DurationSeconds != nil {
			n.SpeakingTime = *t.DurationSeconds
		}
		if i > 0 {
			gap := ts.Sub(prev)
			n.GapFromPrevious = &gap
		}
		prev = ts
		turnWords += n.WordCount
		res.Transcript = append(res.Transcript, n)
	}

	res.Metadata = Metadata{
		TotalEmails:            len(res.Emails),
		TotalTranscriptEntries: len(res.Transcript),
		AvgEmailWords:          mean(emailWords, len(res.Emails)),
		AvgTranscriptWords:     mean(turnWords, len(res.Transcript)),
		ProcessedAt:            now.UTC(),
	}
	return res, nil
}

// WordCount counts whitespace-delimited tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

func parseTimestamp(field, v string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, &conversation.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("malformed timestamp %q", v),
		}
	}
	return ts, nil
}

func mean(total, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(total) / float64(n)
}
