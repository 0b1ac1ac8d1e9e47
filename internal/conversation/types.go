package conversation

// Type is the kind of conversation under analysis.
type Type string

const (
	TypeEmail   Type = "email"
	TypeMeeting Type = "meeting"
	TypeMixed   Type = "mixed"
)

// Priority is the sender-declared priority of an email.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Input is a conversation as submitted for analysis, over HTTP or NATS.
type Input struct {
	ID           string           `json:"conversationId"`
	Type         Type             `json:"type"`
	Participants []string         `json:"participants"`
	Emails       []EmailMessage   `json:"emails,omitempty"`
	Transcript   []TranscriptTurn `json:"transcript,omitempty"`
	Metadata     Metadata         `json:"metadata"`
}

// EmailMessage is one email in a thread.
type EmailMessage struct {
	ID        string   `json:"id"`
	From      string   `json:"from"`
	To        []string `json:"to"`
	CC        []string `json:"cc,omitempty"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	Timestamp string   `json:"timestamp"` // RFC 3339
	Priority  Priority `json:"priority,omitempty"`
	IsReply   bool     `json:"isReply"`
	ReplyToID string   `json:"replyToId,omitempty"`
}

// TranscriptTurn is one speaker turn in a meeting transcript.
type TranscriptTurn struct {
	ID              string   `json:"id"`
	Speaker         string   `json:"speaker"`
	Text            string   `json:"text"`
	Timestamp       string   `json:"timestamp"` // RFC 3339
	DurationSeconds *float64 `json:"duration,omitempty"`
}

// Metadata describes where a conversation came from.
type Metadata struct {
	Source          string   `json:"source,omitempty"` // outlook | gmail | teams | zoom | manual
	ExtractedAt     string   `json:"extractedAt,omitempty"`
	Version         string   `json:"version,omitempty"`
	MeetingDuration *float64 `json:"meetingDuration,omitempty"`
	MeetingDate     string   `json:"meetingDate,omitempty"`
}
