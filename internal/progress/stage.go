package progress

import (
	"errors"
	"fmt"
	"sync"
)

// Stage is a step of the document upload pipeline.
type Stage string

const (
	StageStarting   Stage = "starting"
	StageMovingFile Stage = "movingFile"
	StageUpdatingDB Stage = "updatingDb"
	StageDone       Stage = "done"
	StageError      Stage = "error"
)

// ErrIllegalTransition is returned when a tracker is advanced out of order.
var ErrIllegalTransition = errors.New("illegal progress transition")

var percents = map[Stage]int{
	StageStarting:   10,
	StageMovingFile: 40,
	StageUpdatingDB: 80,
	StageDone:       100,
	StageError:      0,
}

// Percent returns the completion percentage shown for a stage. Unknown stages are 0.
func (s Stage) Percent() int {
	return percents[s]
}

// Terminal reports whether no further stage may follow.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageError
}

func (s Stage) Valid() bool {
	_, ok := percents[s]
	return ok
}

// ParseStage converts a wire status into a Stage.
func ParseStage(raw string) (Stage, error) {
	s := Stage(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown progress stage %q", raw)
	}
	return s, nil
}

// next lists the only forward step allowed from each stage. The empty stage is
// the state before the first event.
var next = map[Stage]Stage{
	"":              StageStarting,
	StageStarting:   StageMovingFile,
	StageMovingFile: StageUpdatingDB,
	StageUpdatingDB: StageDone,
}

// Tracker enforces the stage order for a single upload.
type Tracker struct {
	mu      sync.Mutex
	current Stage
}

func (t *Tracker) Current() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Advance moves to stage. Error is reachable from any non-terminal stage.
func (t *Tracker) Advance(stage Stage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current.Terminal() {
		return fmt.Errorf("%w: %s after %s", ErrIllegalTransition, stage, t.current)
	}
	if stage == StageError || next[t.current] == stage {
		t.current = stage
		return nil
	}
	from := t.current
	if from == "" {
		from = "none"
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, stage)
}
