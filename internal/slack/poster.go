package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/rapport/internal/health"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// Poster sends report alerts to a single Slack channel via chat.postMessage.
type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

type textObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type block struct {
	Type     string       `json:"type"`
	Text     *textObject  `json:"text,omitempty"`
	Elements []textObject `json:"elements,omitempty"`
}

type message struct {
	Channel  string  `json:"channel"`
	Text     string  `json:"text"`
	ThreadTS string  `json:"thread_ts,omitempty"`
	Blocks   []block `json:"blocks,omitempty"`
}

type postResponse struct {
	OK    bool   `json:"ok"`
	TS    string `json:"ts"`
	Error string `json:"error,omitempty"`
}

// PostReportAlerts posts a report's alerts to the alerts channel and
// threads the recommendations under it. Returns the message ts.
func (p *Poster) PostReportAlerts(ctx context.Context, r *health.Report) (string, error) {
	text := formatAlertMessage(r)
	footer := fmt.Sprintf("Report `%s` | analyzed %s", r.ID, r.AnalyzedAt.Format(time.RFC3339))

	ts, err := p.post(ctx, message{
		Channel: p.channel,
		Text:    text,
		Blocks: []block{
			{Type: "section", Text: &textObject{Type: "mrkdwn", Text: text}},
			{Type: "context", Elements: []textObject{{Type: "mrkdwn", Text: footer}}},
		},
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("posted alerts to slack", "ts", ts, "conversation_id", r.ConversationID, "alerts", len(r.Alerts))

	if recs := formatRecommendations(r); recs != "" {
		if err := p.PostThread(ctx, ts, recs); err != nil {
			p.logger.Warn("failed to post recommendations thread", "ts", ts, "error", err)
		}
	}
	return ts, nil
}

// PostThread replies under threadTS, or posts a top-level message when
// threadTS is empty.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	_, err := p.post(ctx, message{Channel: p.channel, ThreadTS: threadTS, Text: text})
	return err
}

func (p *Poster) post(ctx context.Context, msg message) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("slack post: status %d", resp.StatusCode)
	}

	var out postResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !out.OK {
		return "", fmt.Errorf("slack error: %s", out.Error)
	}
	return out.TS, nil
}

var severityEmoji = map[string]string{
	"critical": ":rotating_light:",
	"high":     ":warning:",
	"medium":   ":hourglass:",
}

func formatAlertMessage(r *health.Report) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Conversation:* %s (%s)\n", r.ConversationID, r.Type)
	fmt.Fprintf(&sb, "*Participants:* %s\n", strings.Join(r.Participants, ", "))
	fmt.Fprintf(&sb, "*Health:* %d/100 (%s)", r.OverallScore, r.Status)
	if r.Metadata.Degraded {
		sb.WriteString(" _partial analysis_")
	}
	sb.WriteString("\n\n")

	if len(r.Alerts) == 0 {
		sb.WriteString("_No alerts raised for this conversation._")
		return sb.String()
	}

	fmt.Fprintf(&sb, "*Alerts: %d*\n", len(r.Alerts))
	for i, a := range r.Alerts {
		emoji := severityEmoji[a.Severity]
		if emoji == "" {
			emoji = ":information_source:"
		}
		fmt.Fprintf(&sb, "%d. %s [%s] %s\n   _%s_\n", i+1, emoji, a.Severity, a.Message, a.Recommendation)
	}
	if r.Summary != "" {
		fmt.Fprintf(&sb, "\n%s", r.Summary)
	}
	return sb.String()
}

func formatRecommendations(r *health.Report) string {
	recs := r.Insights.Recommendations
	if len(recs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("*Recommendations*\n")
	for i, rec := range recs {
		fmt.Fprintf(&sb, "%d. [%s/%s] %s", i+1, rec.Priority, rec.Category, rec.Action)
		if rec.ExpectedImpact != "" {
			fmt.Fprintf(&sb, " (%s)", rec.ExpectedImpact)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
