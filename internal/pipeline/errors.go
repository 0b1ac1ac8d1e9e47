package pipeline

import (
	"errors"
	"fmt"

	"github.com/MikeSquared-Agency/rapport/internal/health"
)

var (
	ErrInput       = errors.New("invalid conversation input")
	ErrStage       = errors.New("analysis stage failed")
	ErrAggregation = errors.New("health aggregation failed")
	ErrCancelled   = errors.New("analysis cancelled")
)

// InputError rejects a conversation before any stage runs.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *InputError) Is(target error) bool { return target == ErrInput }

// StageError records the failure of one analysis stage. It stays in the
// stage's slot and never fails the run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Is(target error) bool { return target == ErrStage }

// AggregationError fails the run after the stages finished. Partial holds
// the numeric scorecard when it was computed before the failure.
type AggregationError struct {
	Err     error
	Partial *health.Scorecard
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregate: %v", e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

func (e *AggregationError) Is(target error) bool { return target == ErrAggregation }

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
