package hermes

import "time"

const (
	SubjectConversationIngested = "swarm.conversation.ingested"
	SubjectReportCompleted      = "swarm.rapport.report.completed"
	SubjectReportFailed         = "swarm.rapport.report.failed"
	SubjectAlert                = "swarm.rapport.alert"
	SubjectAgentRegistered      = "swarm.agent.rapport.registered"

	QueueGroup = "rapport"

	// SchemaVersion is sent in the Rapport-Schema header of every message.
	SchemaVersion = "1"
)

// ReportFailed is published when a run ends without a report.
type ReportFailed struct {
	ConversationID string    `json:"conversation_id"`
	Kind           string    `json:"kind"` // input | aggregation | cancelled | internal
	Error          string    `json:"error"`
	Stage          string    `json:"stage,omitempty"`
	FailedAt       time.Time `json:"failed_at"`
}

// AlertRaised is published once per alert on a completed report.
type AlertRaised struct {
	ReportID       string    `json:"report_id"`
	ConversationID string    `json:"conversation_id"`
	Type           string    `json:"type"`
	Severity       string    `json:"severity"`
	Message        string    `json:"message"`
	Recommendation string    `json:"recommendation"`
	OverallScore   int       `json:"overall_score"`
	RaisedAt       time.Time `json:"raised_at"`
}

// AgentRegistered announces the service on startup.
type AgentRegistered struct {
	AgentID      string    `json:"agent_id"`
	Version      string    `json:"version"`
	Provider     string    `json:"provider"`
	Subscribes   []string  `json:"subscribes"`
	Publishes    []string  `json:"publishes"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Registration builds the startup announcement for this service.
func Registration(version, provider string, now time.Time) AgentRegistered {
	return AgentRegistered{
		AgentID:    "rapport",
		Version:    version,
		Provider:   provider,
		Subscribes: []string{SubjectConversationIngested},
		Publishes: []string{
			SubjectReportCompleted,
			SubjectReportFailed,
			SubjectAlert,
		},
		RegisteredAt: now.UTC(),
	}
}
