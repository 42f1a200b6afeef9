package evaluate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/baldhumanity/evo-robotics/hillclimber"
	"github.com/baldhumanity/evo-robotics/scene"
	"github.com/baldhumanity/evo-robotics/sim"
)

type outcome struct {
	fitness float64
	err     error
}

// Local runs trajectories on a bounded pool of goroutines in this process
// and hands each result to Wait over a channel owned by the candidate.
type Local struct {
	cfg    *hillclimber.Config
	engine sim.Engine
	world  *scene.World
	body   *scene.Body
	logger *slog.Logger
	pool   *pool.Pool

	mu      sync.Mutex
	pending map[int]chan outcome
}

var _ hillclimber.Evaluator = (*Local)(nil)

// NewLocal returns an in-process evaluator that runs at most
// cfg.Evaluation.Workers trajectories at a time.
func NewLocal(cfg *hillclimber.Config, engine sim.Engine, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Evaluation.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Local{
		cfg:     cfg,
		engine:  engine,
		world:   scene.DefaultWorld(cfg.Simulation.Gravity),
		body:    scene.DefaultBody(),
		logger:  logger,
		pool:    pool.New().WithMaxGoroutines(workers),
		pending: make(map[int]chan outcome),
	}
}

// SetScene replaces the default world and body. It must be called before
// the first Start.
func (l *Local) SetScene(world *scene.World, body *scene.Body) {
	l.world, l.body = world, body
}

// Start queues the candidate's trajectory. When every worker is busy it
// blocks until one frees up.
func (l *Local) Start(ctx context.Context, s *hillclimber.Solution, mode hillclimber.Mode) error {
	brain, err := s.Brain(l.cfg.Brain)
	if err != nil {
		return err
	}
	ch := make(chan outcome, 1)
	l.mu.Lock()
	if _, dup := l.pending[s.ID]; dup {
		l.mu.Unlock()
		return fmt.Errorf("solution %d already started", s.ID)
	}
	l.pending[s.ID] = ch
	l.mu.Unlock()

	opts := SimOptions(l.cfg, mode)
	opts.Logger = l.logger
	l.pool.Go(func() {
		res, err := sim.Run(ctx, l.engine, l.world, l.body, brain, opts)
		ch <- outcome{fitness: res.Fitness, err: err}
	})
	return nil
}

// Wait receives the candidate's result.
func (l *Local) Wait(ctx context.Context, s *hillclimber.Solution) (float64, error) {
	l.mu.Lock()
	ch, ok := l.pending[s.ID]
	l.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("solution %d was never started", s.ID)
	}

	var deadline <-chan time.Time
	if l.cfg.Evaluation.Timeout > 0 {
		timer := time.NewTimer(l.cfg.Evaluation.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case out := <-ch:
		l.forget(s.ID)
		if out.err != nil {
			return 0, fmt.Errorf("solution %d: %w", s.ID, out.err)
		}
		if math.IsNaN(out.fitness) || math.IsInf(out.fitness, 0) {
			return 0, fmt.Errorf("%w: solution %d has fitness %v", ErrMalformedFitness, s.ID, out.fitness)
		}
		return out.fitness, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-deadline:
		l.forget(s.ID)
		return 0, fmt.Errorf("solution %d after %s: %w", s.ID, l.cfg.Evaluation.Timeout, hillclimber.ErrEvaluationTimeout)
	}
}

func (l *Local) forget(id int) {
	l.mu.Lock()
	delete(l.pending, id)
	l.mu.Unlock()
}

// Close waits for queued trajectories to finish. The Local must not be used afterwards.
func (l *Local) Close() {
	l.pool.Wait()
}
