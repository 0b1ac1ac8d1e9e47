package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
	"github.com/MikeSquared-Agency/rapport/internal/health"
	"github.com/MikeSquared-Agency/rapport/internal/narrative"
	"github.com/MikeSquared-Agency/rapport/internal/pipeline"
	"github.com/MikeSquared-Agency/rapport/internal/processor"
	"github.com/MikeSquared-Agency/rapport/internal/timeliness"
)

const maxBodyBytes = 5 << 20

type analyzeResponse struct {
	Success bool         `json:"success"`
	Data    analyzedData `json:"data"`
}

type analyzedData struct {
	ConversationID    string            `json:"conversationId"`
	Type              conversation.Type `json:"type"`
	Status            string            `json:"status"`
	HealthReport      *health.Report    `json:"healthReport"`
	EmailCount        int               `json:"emailCount"`
	TranscriptCount   int               `json:"transcriptCount"`
	TotalParticipants int               `json:"totalParticipants"`
	ProcessedAt       time.Time         `json:"processedAt"`
	StageErrors       []stageErrorBody  `json:"stageErrors"`
}

type stageErrorBody struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

type failureResponse struct {
	Success        bool            `json:"success"`
	Error          string          `json:"error"`
	Details        string          `json:"details"`
	Stage          string          `json:"stage,omitempty"`
	Field          string          `json:"field,omitempty"`
	PartialResults *partialResults `json:"partialResults,omitempty"`
}

type partialResults struct {
	Sentiment  *narrative.SentimentResult `json:"sentiment,omitempty"`
	Timeliness *timeliness.Result         `json:"timeliness,omitempty"`
	Conflict   *narrative.ConflictResult  `json:"conflict,omitempty"`
	Scorecard  *health.Scorecard          `json:"scorecard,omitempty"`
}

// analyze handles POST /api/v1/analyze.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var in conversation.Input
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, failureResponse{
			Error:   "invalid JSON",
			Details: err.Error(),
		})
		return
	}

	out, err := s.analyzer.Process(r.Context(), in)
	if err != nil {
		s.writeRunFailure(w, out, err)
		return
	}

	stageErrors := make([]stageErrorBody, 0, len(out.StageErrors))
	for _, se := range out.StageErrors {
		stageErrors = append(stageErrors, stageErrorBody{Stage: string(se.Stage), Error: se.Err.Error()})
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Success: true,
		Data: analyzedData{
			ConversationID:    in.ID,
			Type:              in.Type,
			Status:            "analyzed",
			HealthReport:      out.Report,
			EmailCount:        len(in.Emails),
			TranscriptCount:   len(in.Transcript),
			TotalParticipants: len(in.Participants),
			ProcessedAt:       out.Report.AnalyzedAt,
			StageErrors:       stageErrors,
		},
	})
}

func (s *Server) writeRunFailure(w http.ResponseWriter, out *pipeline.Outcome, err error) {
	resp := failureResponse{
		Details: err.Error(),
		Stage:   processor.FailureStage(err),
	}

	var status int
	switch processor.FailureKind(err) {
	case "input":
		status = http.StatusBadRequest
		resp.Error = "invalid conversation input"
		var ie *pipeline.InputError
		if errors.As(err, &ie) {
			resp.Field = ie.Field
		}
	case "cancelled":
		status = http.StatusGatewayTimeout
		resp.Error = "analysis timed out"
		resp.PartialResults = partialFrom(out, err)
	case "aggregation":
		status = http.StatusInternalServerError
		resp.Error = "analysis failed"
		resp.PartialResults = partialFrom(out, err)
	default:
		status = http.StatusInternalServerError
		resp.Error = "internal error"
	}

	writeJSON(w, status, resp)
}

func partialFrom(out *pipeline.Outcome, err error) *partialResults {
	p := &partialResults{}
	if out != nil {
		p.Sentiment = out.Sentiment
		p.Timeliness = out.Timeliness
		p.Conflict = out.Conflict
		p.Scorecard = out.Scorecard
	}
	var ae *pipeline.AggregationError
	if p.Scorecard == nil && errors.As(err, &ae) {
		p.Scorecard = ae.Partial
	}
	return p
}
