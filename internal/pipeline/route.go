package pipeline

import (
	"fmt"
	"slices"
	"sync"

	"github.com/MikeSquared-Agency/rapport/internal/conversation"
)

// Stage names one node of the analysis graph.
type Stage string

const (
	StageNormalize  Stage = "normalize"
	StageSentiment  Stage = "sentiment"
	StageTimeliness Stage = "timeliness"
	StageConflict   Stage = "conflict"
	StageAggregate  Stage = "aggregate"
)

// StageSet lists the analysis stages to run between normalize and
// aggregate.
type StageSet []Stage

func (s StageSet) Has(stage Stage) bool {
	return slices.Contains(s, stage)
}

// Meetings skip timeliness; the executor substitutes a fixed result.
var routes = map[conversation.Type]StageSet{
	conversation.TypeEmail:   {StageSentiment, StageTimeliness, StageConflict},
	conversation.TypeMixed:   {StageSentiment, StageTimeliness, StageConflict},
	conversation.TypeMeeting: {StageSentiment, StageConflict},
}

// Route returns the stage set for a conversation type.
func Route(t conversation.Type) (StageSet, error) {
	set, ok := routes[t]
	if !ok {
		return nil, fmt.Errorf("no route for conversation type %q", t)
	}
	return slices.Clone(set), nil
}

// slot holds one stage's result. Each slot has exactly one writer.
type slot[T any] struct {
	stage   Stage
	mu      sync.Mutex
	written bool
	val     *T
	err     error
}

func newSlot[T any](stage Stage) *slot[T] {
	return &slot[T]{stage: stage}
}

func (s *slot[T]) set(v *T, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written {
		panic(fmt.Sprintf("pipeline: %s slot written twice", s.stage))
	}
	s.written = true
	s.val = v
	s.err = err
}

func (s *slot[T]) get() (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.val, s.err
}
