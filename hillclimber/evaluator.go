package hillclimber

import (
	"context"
	"errors"
)

// ErrEvaluationTimeout is returned by an Evaluator's Wait when the result did
// not arrive within the configured timeout.
var ErrEvaluationTimeout = errors.New("evaluation timed out")

// Mode selects how a candidate's trajectory is run.
type Mode string

const (
	// ModeDirect runs the trajectory as fast as possible.
	ModeDirect Mode = "direct"
	// ModeGUI paces the trajectory for live observation.
	ModeGUI Mode = "gui"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDirect, ModeGUI:
		return Mode(s), nil
	}
	return "", errors.New("mode must be 'direct' or 'gui'")
}

// Evaluator computes the fitness of candidates. Start must not block on the
// trajectory itself: all Starts of a generation are issued before any Wait.
type Evaluator interface {
	Start(ctx context.Context, s *Solution, mode Mode) error
	Wait(ctx context.Context, s *Solution) (float64, error)
}

// Resetter is implemented by evaluators that keep state between runs, such
// as result artifacts on disk. Reset must be idempotent.
type Resetter interface {
	Reset() error
}
