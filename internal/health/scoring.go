package health

import (
	"fmt"
	"math"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
	"github.com/MikeSquared-Agency/rapport/internal/narrative"
	"github.com/MikeSquared-Agency/rapport/internal/timeliness"
)

// Fallback sub-scores used when a stage produced no result.
const (
	DefaultEmotionalHealth      = 50
	DefaultResponsivenessHealth = 100
	DefaultConflictHealth       = 100
	DefaultRelationshipHealth   = 75
)

const (
	criticalConflictLevel  = 7
	poorResponsiveness     = 40
	conflictPointsPerLevel = 10
	weightTolerance        = 1e-9
)

// Weights holds the contribution of each dimension to the overall score.
type Weights struct {
	Emotional      float64
	Responsiveness float64
	Conflict       float64
	Relationship   float64
}

func (w Weights) Sum() float64 {
	return w.Emotional + w.Responsiveness + w.Conflict + w.Relationship
}

var emailWeights = Weights{Emotional: 0.20, Responsiveness: 0.25, Conflict: 0.30, Relationship: 0.25}

var weightTable = map[conversation.Type]Weights{
	conversation.TypeMeeting: {Emotional: 0.30, Responsiveness: 0.00, Conflict: 0.40, Relationship: 0.30},
	conversation.TypeEmail:   emailWeights,
	conversation.TypeMixed:   emailWeights,
}

// WeightsFor returns the weight table entry for a conversation type.
func WeightsFor(t conversation.Type) (Weights, error) {
	w, ok := weightTable[t]
	if !ok {
		return Weights{}, fmt.Errorf("no weights for conversation type %q", t)
	}
	if math.Abs(w.Sum()-1.0) > weightTolerance {
		return Weights{}, fmt.Errorf("weights for %q sum to %v, want 1.0", t, w.Sum())
	}
	return w, nil
}

// Status buckets the overall score.
type Status string

const (
	StatusExcellent Status = "excellent"
	StatusGood      Status = "good"
	StatusModerate  Status = "moderate"
	StatusAtRisk    Status = "at-risk"
	StatusCritical  Status = "critical"
)

// highest threshold first; first match wins
var statusThresholds = []struct {
	min    int
	status Status
}{
	{85, StatusExcellent},
	{70, StatusGood},
	{50, StatusModerate},
	{30, StatusAtRisk},
}

// StatusFor maps an overall score to its status bucket.
func StatusFor(score int) Status {
	for _, th := range statusThresholds {
		if score >= th.min {
			return th.status
		}
	}
	return StatusCritical
}

// Dimension is one weighted sub-score.
type Dimension struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// Breakdown lists every dimension of the overall score.
type Breakdown struct {
	EmotionalHealth      Dimension `json:"emotionalHealth"`
	ResponsivenessHealth Dimension `json:"responsivenessHealth"`
	ConflictHealth       Dimension `json:"conflictHealth"`
	RelationshipHealth   Dimension `json:"relationshipHealth"`
}

// Alert flags a condition that needs attention.
type Alert struct {
	Type           string `json:"type"`
	Severity       string `json:"severity"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation"`
}

const (
	AlertCriticalConflict   = "critical_conflict"
	AlertPoorResponsiveness = "poor_responsiveness"
)

// Inputs are the stage outputs the scorecard is built from. Any of them may
// be nil when its stage failed.
type Inputs struct {
	Type       conversation.Type
	Sentiment  *narrative.SentimentResult
	Timeliness *timeliness.Result
	Conflict   *narrative.ConflictResult
}

// Scorecard is the numeric part of a report.
type Scorecard struct {
	OverallScore int       `json:"overallScore"`
	Status       Status    `json:"status"`
	Breakdown    Breakdown `json:"breakdown"`
	Alerts       []Alert   `json:"alerts"`
	// Degraded is set when at least one sub-score is a fallback default.
	Degraded bool `json:"degraded"`
}

// Evaluate computes sub-scores, the weighted overall score, status and
// alerts. It is pure and fails only on an invalid weight table or a
// sub-score outside [0, 100].
func Evaluate(in Inputs) (*Scorecard, error) {
	w, err := WeightsFor(in.Type)
	if err != nil {
		return nil, err
	}

	emotional := float64(DefaultEmotionalHealth)
	responsiveness := float64(DefaultResponsivenessHealth)
	conflict := float64(DefaultConflictHealth)
	relationship := float64(DefaultRelationshipHealth)
	degraded := false

	if in.Sentiment != nil {
		emotional = in.Sentiment.OverallSentiment
	} else {
		degraded = true
	}
	if in.Timeliness != nil {
		responsiveness = float64(in.Timeliness.Score)
	} else {
		degraded = true
	}
	if in.Conflict != nil {
		conflict = ConflictHealth(in.Conflict.ConflictLevel)
		relationship = in.Conflict.RelationshipHealth
	} else {
		degraded = true
	}

	b := Breakdown{
		EmotionalHealth:      Dimension{Score: emotional, Weight: w.Emotional},
		ResponsivenessHealth: Dimension{Score: responsiveness, Weight: w.Responsiveness},
		ConflictHealth:       Dimension{Score: conflict, Weight: w.Conflict},
		RelationshipHealth:   Dimension{Score: relationship, Weight: w.Relationship},
	}
	for name, d := range map[string]Dimension{
		"emotionalHealth":      b.EmotionalHealth,
		"responsivenessHealth": b.ResponsivenessHealth,
		"conflictHealth":       b.ConflictHealth,
		"relationshipHealth":   b.RelationshipHealth,
	} {
		if d.Score < 0 || d.Score > 100 || math.IsNaN(d.Score) {
			return nil, fmt.Errorf("%s score %v outside [0, 100]", name, d.Score)
		}
	}

	overall := int(math.Round(
		w.Emotional*emotional +
			w.Responsiveness*responsiveness +
			w.Conflict*conflict +
			w.Relationship*relationship,
	))

	return &Scorecard{
		OverallScore: overall,
		Status:       StatusFor(overall),
		Breakdown:    b,
		Alerts:       Alerts(in.Conflict, responsiveness),
		Degraded:     degraded,
	}, nil
}

// ConflictHealth converts a 0-10 conflict level into a 0-100 health score.
func ConflictHealth(level float64) float64 {
	return math.Max(0, 100-level*conflictPointsPerLevel)
}

// Alerts returns every alert whose condition holds. Conflict alerts need a
// conflict result; responsiveness is always known (fallback 100).
func Alerts(conflict *narrative.ConflictResult, responsiveness float64) []Alert {
	alerts := []Alert{}
	if conflict != nil && conflict.ConflictLevel >= criticalConflictLevel {
		alerts = append(alerts, Alert{
			Type:           AlertCriticalConflict,
			Severity:       "critical",
			Message:        "High conflict level detected requiring immediate attention",
			Recommendation: "Schedule urgent mediation or supervisor intervention",
		})
	}
	if responsiveness < poorResponsiveness {
		alerts = append(alerts, Alert{
			Type:           AlertPoorResponsiveness,
			Severity:       "medium",
			Message:        "Poor response times affecting communication effectiveness",
			Recommendation: "Establish clear response time expectations and protocols",
		})
	}
	return alerts
}
