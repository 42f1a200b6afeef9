package hillclimber

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// scriptedEvaluator returns fitness values looked up by candidate id, or
// computed from the weights when no scripted value exists.
type scriptedEvaluator struct {
	mu       sync.Mutex
	byID     map[int]float64
	fallback func(*Solution) float64
	timeouts map[int]bool
	failures map[int]error
	events   []string
	modes    map[int]Mode
	resets   int
}

func newScripted(byID map[int]float64) *scriptedEvaluator {
	return &scriptedEvaluator{
		byID:     byID,
		fallback: func(*Solution) float64 { return 100 },
		timeouts: map[int]bool{},
		failures: map[int]error{},
		modes:    map[int]Mode{},
	}
}

func (e *scriptedEvaluator) Start(_ context.Context, s *Solution, mode Mode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, fmt.Sprintf("start:%d", s.ID))
	e.modes[s.ID] = mode
	return nil
}

func (e *scriptedEvaluator) Wait(_ context.Context, s *Solution) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, fmt.Sprintf("wait:%d", s.ID))
	if e.timeouts[s.ID] {
		return 0, ErrEvaluationTimeout
	}
	if err := e.failures[s.ID]; err != nil {
		return 0, err
	}
	if f, ok := e.byID[s.ID]; ok {
		return f, nil
	}
	return e.fallback(s), nil
}

func (e *scriptedEvaluator) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resets++
	return nil
}

// sumOfWeights is a deterministic fitness that rewards negative weights.
func sumOfWeights(s *Solution) float64 {
	total := 0.0
	for _, w := range s.Weights.RawMatrix().Data {
		total += w
	}
	return total
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(pop, gens int) *Config {
	cfg := DefaultConfig()
	cfg.HillClimber.PopulationSize = pop
	cfg.HillClimber.NumberOfGenerations = gens
	cfg.HillClimber.Seed = 42
	return cfg
}
