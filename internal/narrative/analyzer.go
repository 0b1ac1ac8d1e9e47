package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
	"github.com/MikeSquared-Agency/rapport/internal/normalizer"
)

// Analyzer turns normalized conversations into sentiment, conflict and
// insight judgments using a narrative Provider.
type Analyzer struct {
	provider Provider
	logger   *slog.Logger
}

func NewAnalyzer(p Provider, logger *slog.Logger) *Analyzer {
	return &Analyzer{provider: p, logger: logger}
}

// Sentiment scores the emotional tone of the conversation. Emails are
// preferred over the transcript when both are present.
func (a *Analyzer) Sentiment(ctx context.Context, subj Subject, msgs *normalizer.Result) (*SentimentResult, error) {
	prompt := fmt.Sprintf(sentimentUserPrompt, subj.Type, strings.Join(subj.Participants, ", "), sentimentContent(msgs))

	raw, err := a.complete(ctx, "sentiment", subj, sentimentSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	res, err := ParseSentiment(raw)
	if err != nil {
		a.logger.Error("failed to parse sentiment response",
			"conversation_id", subj.ConversationID,
			"error", err,
			"raw", raw,
		)
		return nil, err
	}

	a.logger.Info("sentiment analysis complete",
		"conversation_id", subj.ConversationID,
		"overall_sentiment", res.OverallSentiment,
		"trend", res.SentimentTrend,
	)
	return res, nil
}

// Conflict assesses conflict level and relationship health.
func (a *Analyzer) Conflict(ctx context.Context, subj Subject, msgs *normalizer.Result) (*ConflictResult, error) {
	prompt := fmt.Sprintf(conflictUserPrompt, subj.Type, strings.Join(subj.Participants, ", "), conflictContent(msgs))

	raw, err := a.complete(ctx, "conflict", subj, conflictSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	res, err := ParseConflict(raw)
	if err != nil {
		a.logger.Error("failed to parse conflict response",
			"conversation_id", subj.ConversationID,
			"error", err,
			"raw", raw,
		)
		return nil, err
	}

	a.logger.Info("conflict analysis complete",
		"conversation_id", subj.ConversationID,
		"conflict_level", res.ConflictLevel,
		"relationship_health", res.RelationshipHealth,
	)
	return res, nil
}

// Insights writes the summary and recommendations for computed scores.
func (a *Analyzer) Insights(ctx context.Context, req InsightRequest) (*InsightResult, error) {
	raw, err := a.complete(ctx, "insight", req.Subject, insightSystemPrompt, InsightPrompt(req))
	if err != nil {
		return nil, err
	}

	res, err := ParseInsight(raw)
	if err != nil {
		a.logger.Error("failed to parse insight response",
			"conversation_id", req.ConversationID,
			"error", err,
			"raw", raw,
		)
		return nil, err
	}
	return res, nil
}

func (a *Analyzer) complete(ctx context.Context, kind string, subj Subject, system, prompt string) (string, error) {
	a.logger.Debug("requesting narrative analysis",
		"kind", kind,
		"conversation_id", subj.ConversationID,
		"prompt_len", len(prompt),
	)
	raw, err := a.provider.Complete(ctx, system, prompt)
	if err != nil {
		return "", fmt.Errorf("%s provider call: %w", kind, err)
	}
	return raw, nil
}

// InsightPrompt renders the insight prompt. Meetings omit responsiveness
// and use meeting-specific recommendation categories.
func InsightPrompt(req InsightRequest) string {
	var metrics strings.Builder
	fmt.Fprintf(&metrics, "- Emotional Health: %g/100\n", req.EmotionalHealth)
	fmt.Fprintf(&metrics, "- Conflict Management: %g/100\n", req.ConflictHealth)
	fmt.Fprintf(&metrics, "- Relationship Health: %g/100\n", req.RelationshipHealth)

	categories, note := emailCategories, ""
	if req.Type == conversation.TypeMeeting {
		categories, note = meetingCategories, meetingNote
	} else {
		fmt.Fprintf(&metrics, "- Responsiveness: %g/100\n", req.ResponsivenessHealth)
	}

	return fmt.Sprintf(insightUserPrompt,
		req.OverallScore, req.Status,
		metrics.String(),
		req.Type,
		strings.Join(req.Participants, ", "),
		note,
		categories,
	)
}

func sentimentContent(msgs *normalizer.Result) string {
	var parts []string
	switch {
	case len(msgs.Emails) > 0:
		for i, e := range msgs.Emails {
			parts = append(parts, fmt.Sprintf("Email %d [%s] (%s): %s", i+1, e.ID, e.From, e.Body))
		}
	default:
		for _, t := range msgs.Transcript {
			parts = append(parts, fmt.Sprintf("[%s] %s: %s", t.ID, t.Speaker, t.Text))
		}
	}
	return strings.Join(parts, "\n\n")
}

func conflictContent(msgs *normalizer.Result) string {
	var parts []string
	switch {
	case len(msgs.Emails) > 0:
		for i, e := range msgs.Emails {
			parts = append(parts, fmt.Sprintf("Email %d (%s):\nFrom: %s\nTo: %s\nSubject: %s\nContent: %q\n",
				i+1, e.SentAt.UTC().Format("15:04"), e.From, strings.Join(e.To, ", "), e.Subject, e.Body))
		}
	default:
		for i, t := range msgs.Transcript {
			parts = append(parts, fmt.Sprintf("Entry %d (%s):\nSpeaker: %s\nText: %q\n",
				i+1, t.SpokenAt.UTC().Format("15:04"), t.Speaker, t.Text))
		}
	}
	return strings.Join(parts, "\n---\n")
}
