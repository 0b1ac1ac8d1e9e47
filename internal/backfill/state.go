package backfill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const DefaultStatePath = "~/.rapport/backfill-state.json"

// BackfillState tracks progress for resumable backfill runs.
type BackfillState struct {
	StartedAt             time.Time      `json:"started_at"`
	LastProcessedAt       time.Time      `json:"last_processed_at"`
	FilesProcessed        []string       `json:"files_processed"`
	FilesRemaining        int            `json:"files_remaining"`
	ConversationsAnalyzed int            `json:"conversations_analyzed"`
	ReportsByStatus       map[string]int `json:"reports_by_status"`
	AlertsRaised          int            `json:"alerts_raised"`
	Errors                []string       `json:"errors"`

	path string // not serialized
}

// LoadState loads the backfill state from path, or creates a new one.
func LoadState(path string) (*BackfillState, error) {
	if path == "" {
		path = DefaultStatePath
	}
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &BackfillState{
				StartedAt:       time.Now().UTC(),
				ReportsByStatus: map[string]int{},
				path:            p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s BackfillState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if s.ReportsByStatus == nil {
		s.ReportsByStatus = map[string]int{}
	}
	s.path = p
	return &s, nil
}

// Save writes the state through a temp file so an interrupted save never
// leaves a truncated state file behind.
func (s *BackfillState) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".backfill-state-*")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Path returns the resolved state file location.
func (s *BackfillState) Path() string {
	return s.path
}

// IsProcessed returns true if the given file has already been processed.
func (s *BackfillState) IsProcessed(path string) bool {
	return slices.Contains(s.FilesProcessed, path)
}

// MarkProcessed records a file as processed.
func (s *BackfillState) MarkProcessed(path string) {
	s.FilesProcessed = append(s.FilesProcessed, path)
}

// RecordReport counts one analyzed conversation.
func (s *BackfillState) RecordReport(status string, alerts int) {
	if s.ReportsByStatus == nil {
		s.ReportsByStatus = map[string]int{}
	}
	s.ConversationsAnalyzed++
	s.ReportsByStatus[status]++
	s.AlertsRaised += alerts
}

// AddError records a processing error.
func (s *BackfillState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
