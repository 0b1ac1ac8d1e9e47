package narrative

import (
	"context"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
)

// Provider is a text-generation backend. Implementations return the raw
// model text, which is expected to hold a single JSON object.
type Provider interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Subject identifies the conversation a prompt is about.
type Subject struct {
	ConversationID string
	Type           conversation.Type
	Participants   []string
}

// SentimentResult is the sentiment stage output.
type SentimentResult struct {
	OverallSentiment    float64          `json:"overallSentiment"`
	SentimentTrend      string           `json:"sentimentTrend"` // improving | declining | stable
	EmotionalVolatility float64          `json:"emotionalVolatility"`
	IndividualItems     []SentimentItem  `json:"individualItems"`
	EmotionalPattern    EmotionalPattern `json:"emotionalPattern"`
}

// SentimentItem scores one email or transcript turn.
type SentimentItem struct {
	ItemID            string   `json:"itemId"`
	Sentiment         float64  `json:"sentiment"`
	Emotion           string   `json:"emotion"`
	Confidence        float64  `json:"confidence"`
	EmotionalKeywords []string `json:"emotionalKeywords"`
}

// EmotionalPattern summarises the emotional shape of the conversation.
type EmotionalPattern struct {
	DominantEmotion string  `json:"dominantEmotion"`
	EmotionalRange  float64 `json:"emotionalRange"`
	PositiveCount   int     `json:"positiveCount"`
	NeutralCount    int     `json:"neutralCount"`
	NegativeCount   int     `json:"negativeCount"`
}

// ConflictResult is the conflict stage output.
type ConflictResult struct {
	ConflictLevel        float64              `json:"conflictLevel"` // 0 harmonious .. 10 hostile
	ConflictType         string               `json:"conflictType"`
	EscalationPattern    string               `json:"escalationPattern"`
	RiskFlags            []string             `json:"riskFlags"`
	ConflictIndicators   ConflictIndicators   `json:"conflictIndicators"`
	RelationshipHealth   float64              `json:"relationshipHealth"`
	RelationshipDynamics RelationshipDynamics `json:"relationshipDynamics"`
}

// ConflictIndicators flags specific conflict behaviours.
type ConflictIndicators struct {
	DefensiveLanguage      bool `json:"defensiveLanguage"`
	BlameAttribution       bool `json:"blameAttribution"`
	PersonalAttacks        bool `json:"personalAttacks"`
	AggressiveTone         bool `json:"aggressiveTone"`
	PowerStruggle          bool `json:"powerStruggle"`
	CommunicationBreakdown bool `json:"communicationBreakdown"`
}

// RelationshipDynamics describes the balance between participants.
type RelationshipDynamics struct {
	PowerBalance       string  `json:"powerBalance"`
	DominantParty      *string `json:"dominantParty"`
	Reciprocity        float64 `json:"reciprocity"`
	TrustIndicators    float64 `json:"trustIndicators"`
	CollaborationLevel float64 `json:"collaborationLevel"`
}

// InsightRequest carries the computed scores into the insight prompt.
type InsightRequest struct {
	Subject
	OverallScore         int
	Status               string
	EmotionalHealth      float64
	ResponsivenessHealth float64
	ConflictHealth       float64
	RelationshipHealth   float64
}

// InsightResult is the narrative part of a health report.
type InsightResult struct {
	Summary  string   `json:"summary"`
	Insights Insights `json:"insights"`
}

// Insights groups strengths, concerns and recommendations.
type Insights struct {
	Strengths       []string         `json:"strengths"`
	Concerns        []string         `json:"concerns"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Recommendation is one suggested action.
type Recommendation struct {
	Priority       string `json:"priority"` // high | medium | low
	Category       string `json:"category"`
	Action         string `json:"action"`
	ExpectedImpact string `json:"expectedImpact"`
}
