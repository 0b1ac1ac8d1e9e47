// Package timeliness scores how promptly participants in an email thread
// answered each other, relative to the urgency of each exchange.
package timeliness

import (
	"math"
	"strings"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
	"github.com/MikeSquared-Agency/rapport/internal/normalizer"
)

// Urgency classifies a response event.
type Urgency string

const (
	UrgencyUrgent Urgency = "urgent"
	UrgencyHigh   Urgency = "high"
	UrgencyNormal Urgency = "normal"
)

// Pattern describes how response times move over the thread.
type Pattern string

const (
	PatternStable           Pattern = "stable"
	PatternImproving        Pattern = "improving"
	PatternDeteriorating    Pattern = "deteriorating"
	PatternInsufficientData Pattern = "insufficient_data"
	PatternNotApplicable    Pattern = "not_applicable_for_meetings"
)

// PerfectScore is used whenever there is nothing to judge.
const PerfectScore = 100

const (
	deterioratingFactor = 1.5
	improvingFactor     = 0.7
	minEventsForTrend   = 3
	consistencyPenalty  = 5.0
)

// ExpectedMaxHours maps urgency to the longest acceptable response time.
var ExpectedMaxHours = map[Urgency]float64{
	UrgencyUrgent: 2,
	UrgencyHigh:   8,
	UrgencyNormal: 24,
}

// ResponseEvent is one reply (explicit or implied) in a thread.
type ResponseEvent struct {
	FromID           string  `json:"fromId"`
	ToID             string  `json:"toId"`
	ElapsedHours     float64 `json:"elapsedHours"`
	UrgencyLevel     Urgency `json:"urgencyLevel"`
	ExpectedMaxHours float64 `json:"expectedMaxHours"`
	TimelinessScore  int     `json:"timelinessScore"`
	IsDelayed        bool    `json:"isDelayed"`
}

// Result is the output of the timeliness stage.
type Result struct {
	Score                int             `json:"responseTimeScore"`
	Pattern              Pattern         `json:"timelinessPattern"`
	AverageResponseHours *float64        `json:"averageResponseHours"`
	Events               []ResponseEvent `json:"responseTimes"`
	GettingSlower        bool            `json:"gettingSlower"`
	// ConsistencyScore is unclamped and goes negative when response
	// times spread by more than 20 hours.
	ConsistencyScore float64 `json:"consistencyScore"`
}

// NotApplicable is substituted for meetings, where reply latency has no meaning.
func NotApplicable() *Result {
	return &Result{
		Score:            PerfectScore,
		Pattern:          PatternNotApplicable,
		Events:           []ResponseEvent{},
		ConsistencyScore: PerfectScore,
	}
}

// Analyze derives response events, the aggregate score and the trend from
// emails in arrival order. It never fails.
func Analyze(emails []normalizer.NormalizedEmail) *Result {
	if len(emails) < 2 {
		return &Result{
			Score:            PerfectScore,
			Pattern:          PatternInsufficientData,
			Events:           []ResponseEvent{},
			ConsistencyScore: PerfectScore,
		}
	}

	events := PairEvents(emails)

	res := &Result{
		Score:            AggregateScore(events),
		Pattern:          Trend(events),
		Events:           events,
		ConsistencyScore: Consistency(events),
	}
	res.GettingSlower = res.Pattern == PatternDeteriorating
	if len(events) > 0 {
		avg := meanElapsed(events)
		res.AverageResponseHours = &avg
	}
	return res
}

// PairEvents records an event for each adjacent pair that is either an
// explicit reply or a change of sender. Same-sender follow-ups are skipped.
func PairEvents(emails []normalizer.NormalizedEmail) []ResponseEvent {
	events := make([]ResponseEvent, 0, len(emails))
	for i := 1; i < len(emails); i++ {
		prev, cur := emails[i-1], emails[i]
		isReply := cur.ReplyToID != "" && cur.ReplyToID == prev.ID
		if !isReply && cur.From == prev.From {
			continue
		}

		elapsed := cur.SentAt.Sub(prev.SentAt).Hours()
		urgency := Classify(prev.EmailMessage, cur.EmailMessage)
		expected := ExpectedMaxHours[urgency]

		events = append(events, ResponseEvent{
			FromID:           prev.ID,
			ToID:             cur.ID,
			ElapsedHours:     elapsed,
			UrgencyLevel:     urgency,
			ExpectedMaxHours: expected,
			TimelinessScore:  Score(elapsed, expected),
			IsDelayed:        elapsed > expected,
		})
	}
	return events
}

// Classify returns the urgency of the exchange between two emails.
func Classify(prev, cur conversation.EmailMessage) Urgency {
	switch {
	case prev.Priority == conversation.PriorityUrgent || cur.Priority == conversation.PriorityUrgent:
		return UrgencyUrgent
	case mentionsUrgent(prev.Subject) || mentionsUrgent(cur.Subject):
		return UrgencyUrgent
	case prev.Priority == conversation.PriorityHigh || cur.Priority == conversation.PriorityHigh:
		return UrgencyHigh
	default:
		return UrgencyNormal
	}
}

func mentionsUrgent(subject string) bool {
	return strings.Contains(strings.ToLower(subject), "urgent")
}

// Score is the per-event timeliness: 100 at zero latency, falling linearly
// to 0 at the expected maximum.
func Score(elapsedHours, expectedMaxHours float64) int {
	s := 100 - (elapsedHours/expectedMaxHours)*100
	return int(math.Round(math.Min(100, math.Max(0, s))))
}

// AggregateScore is the rounded mean of the per-event scores, or 100 when
// there are no events.
func AggregateScore(events []ResponseEvent) int {
	if len(events) == 0 {
		return PerfectScore
	}
	total := 0
	for _, e := range events {
		total += e.TimelinessScore
	}
	return int(math.Round(float64(total) / float64(len(events))))
}

// Trend compares mean latency of the first and second halves of the events.
// The earlier half gets the smaller share on odd counts.
func Trend(events []ResponseEvent) Pattern {
	if len(events) < minEventsForTrend {
		return PatternStable
	}
	mid := len(events) / 2
	first := meanElapsed(events[:mid])
	second := meanElapsed(events[mid:])

	switch {
	case second > first*deterioratingFactor:
		return PatternDeteriorating
	case second < first*improvingFactor:
		return PatternImproving
	default:
		return PatternStable
	}
}

// Consistency penalises spread between the fastest and slowest response.
func Consistency(events []ResponseEvent) float64 {
	if len(events) <= 1 {
		return PerfectScore
	}
	lo, hi := events[0].ElapsedHours, events[0].ElapsedHours
	for _, e := range events[1:] {
		lo = math.Min(lo, e.ElapsedHours)
		hi = math.Max(hi, e.ElapsedHours)
	}
	return PerfectScore - (hi-lo)*consistencyPenalty
}

func meanElapsed(events []ResponseEvent) float64 {
	total := 0.0
	for _, e := range events {
		total += e.ElapsedHours
	}
	return total / float64(len(events))
}
