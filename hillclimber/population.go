package hillclimber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// SlotResult is the selection outcome of one lineage in one generation.
type SlotResult struct {
	Slot          int
	ParentID      int
	ParentFitness float64
	ChildID       int
	ChildFitness  float64
	Accepted      bool // the child replaced the parent
}

// GenerationResult summarizes one spawn, mutate, evaluate and select cycle.
type GenerationResult struct {
	Generation int
	Slots      []SlotResult
	Elapsed    time.Duration
}

// Fitnesses returns the parent fitness of every slot after selection.
func (r *GenerationResult) Fitnesses() []float64 {
	out := make([]float64, len(r.Slots))
	for i, s := range r.Slots {
		if s.Accepted {
			out[i] = s.ChildFitness
		} else {
			out[i] = s.ParentFitness
		}
	}
	return out
}

// Accepted counts the slots whose child replaced its parent.
func (r *GenerationResult) Accepted() int {
	n := 0
	for _, s := range r.Slots {
		if s.Accepted {
			n++
		}
	}
	return n
}

// ParallelHillClimber runs one (1+1) hill climber per population slot. All
// candidates of a generation are evaluated concurrently and every slot keeps
// its parent unless the child is strictly better.
type ParallelHillClimber struct {
	Config     *Config
	Parents    []*Solution
	Children   []*Solution
	Generation int // completed generations

	evaluator   Evaluator
	rng         *rand.Rand
	source      *countingSource // nil when WithRand replaced the seeded source
	nextID      int
	evaluations int
	evaluated   bool // parents carry a fitness
	logger      *slog.Logger
	reporters   []Reporter
}

// Option configures a ParallelHillClimber.
type Option func(*ParallelHillClimber)

// WithLogger sets the logger used for progress output.
func WithLogger(l *slog.Logger) Option {
	return func(p *ParallelHillClimber) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithReporters registers reporters notified after every generation and
// once with the final best candidate.
func WithReporters(r ...Reporter) Option {
	return func(p *ParallelHillClimber) {
		p.reporters = append(p.reporters, r...)
	}
}

// WithRand replaces the random source seeded from the config.
func WithRand(rng *rand.Rand) Option {
	return func(p *ParallelHillClimber) {
		if rng != nil {
			p.rng = rng
			p.source = nil
		}
	}
}

// NewParallelHillClimber validates cfg and creates PopulationSize parents with
// ids 0..PopulationSize-1 and uniformly drawn weights.
func NewParallelHillClimber(cfg *Config, evaluator Evaluator, opts ...Option) (*ParallelHillClimber, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if evaluator == nil {
		return nil, errors.New("evaluator is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.HillClimber.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	source := newCountingSource(seed)
	p := &ParallelHillClimber{
		Config:    cfg,
		evaluator: evaluator,
		rng:       rand.New(source),
		source:    source,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	sensors, motors := len(cfg.Brain.SensorLinks), len(cfg.Brain.MotorJoints)
	p.Parents = make([]*Solution, cfg.HillClimber.PopulationSize)
	for i := range p.Parents {
		p.Parents[i] = NewSolution(p.getNextID(), sensors, motors, p.rng,
			cfg.HillClimber.WeightMinValue, cfg.HillClimber.WeightMaxValue)
	}
	return p, nil
}

// NewHillClimber is a serial hill climber: a single lineage.
func NewHillClimber(cfg *Config, evaluator Evaluator, opts ...Option) (*ParallelHillClimber, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	single := *cfg
	single.HillClimber.PopulationSize = 1
	return NewParallelHillClimber(&single, evaluator, opts...)
}

// Evaluations is the number of candidate evaluations this climber has run.
// A climber restored from a checkpoint starts counting from zero.
func (p *ParallelHillClimber) Evaluations() int {
	return p.evaluations
}

// AddReporter registers another reporter.
func (p *ParallelHillClimber) AddReporter(r Reporter) {
	p.reporters = append(p.reporters, r)
}

// getNextID hands out strictly increasing candidate ids, so no two live
// candidates ever share result artifacts.
func (p *ParallelHillClimber) getNextID() int {
	id := p.nextID
	p.nextID++
	return id
}

// Evolve clears stale evaluator state, evaluates the initial parents and
// runs the remaining generations. It returns the best parent.
func (p *ParallelHillClimber) Evolve(ctx context.Context) (*Solution, error) {
	if r, ok := p.evaluator.(Resetter); ok {
		if err := r.Reset(); err != nil {
			return nil, fmt.Errorf("resetting evaluator: %w", err)
		}
	}
	if !p.evaluated {
		if err := p.EvaluatePopulation(ctx); err != nil {
			return nil, err
		}
	}
	for p.Generation < p.Config.HillClimber.NumberOfGenerations {
		if err := ctx.Err(); err != nil {
			return p.Best(), err
		}
		if _, err := p.RunGeneration(ctx); err != nil {
			return p.Best(), err
		}
	}

	best := p.Best()
	p.logger.Info("search finished",
		"generations", p.Generation,
		"best_id", best.ID,
		"best_fitness", best.Fitness)
	for _, r := range p.reporters {
		if err := r.ReportBest(best); err != nil {
			return best, fmt.Errorf("reporting best solution: %w", err)
		}
	}
	return best, nil
}

// EvaluatePopulation establishes the baseline fitness of every parent.
func (p *ParallelHillClimber) EvaluatePopulation(ctx context.Context) error {
	p.logger.Info("evaluating initial population", "size", len(p.Parents))
	if err := p.evaluate(ctx, p.Parents, ModeDirect); err != nil {
		return fmt.Errorf("evaluating parents: %w", err)
	}
	p.evaluated = true
	p.evaluations += len(p.Parents)
	for i, s := range p.Parents {
		p.logger.Debug("parent evaluated", "slot", i, "id", s.ID, "fitness", s.Fitness)
	}
	return nil
}

// RunGeneration spawns, mutates, evaluates and selects once. Parents keep
// the fitness measured when they were created; they are not re-evaluated.
func (p *ParallelHillClimber) RunGeneration(ctx context.Context) (*GenerationResult, error) {
	if !p.evaluated {
		return nil, errors.New("parents have not been evaluated")
	}
	start := time.Now()
	gen := p.Generation + 1
	p.logger.Info("generation started", "generation", gen)

	p.Spawn()
	p.MutateChildren()
	if err := p.evaluate(ctx, p.Children, ModeDirect); err != nil {
		return nil, fmt.Errorf("generation %d: evaluating children: %w", gen, err)
	}
	p.evaluations += len(p.Children)
	result := p.Select()
	p.Generation = gen
	result.Generation = gen
	result.Elapsed = time.Since(start)

	best := p.Best()
	p.logger.Info("generation finished",
		"generation", gen,
		"accepted", result.Accepted(),
		"best_id", best.ID,
		"best_fitness", best.Fitness,
		"elapsed", result.Elapsed)

	for _, r := range p.reporters {
		if err := r.ReportGeneration(*result); err != nil {
			return result, fmt.Errorf("generation %d: reporter: %w", gen, err)
		}
	}
	return result, nil
}

// Spawn makes every slot's child an independent copy of its parent with a
// fresh id.
func (p *ParallelHillClimber) Spawn() {
	p.Children = make([]*Solution, len(p.Parents))
	for i, parent := range p.Parents {
		p.Children[i] = parent.Copy(p.getNextID())
	}
}

// MutateChildren applies one single-weight mutation to every child.
func (p *ParallelHillClimber) MutateChildren() {
	for _, child := range p.Children {
		child.Mutate(p.rng)
	}
}

// Select replaces parents[i] with children[i] wherever the child is strictly
// better. Slots never compete with each other.
func (p *ParallelHillClimber) Select() *GenerationResult {
	result := &GenerationResult{Slots: make([]SlotResult, len(p.Parents))}
	for i, parent := range p.Parents {
		child := p.Children[i]
		slot := SlotResult{
			Slot:          i,
			ParentID:      parent.ID,
			ParentFitness: parent.Fitness,
			ChildID:       child.ID,
			ChildFitness:  child.Fitness,
			Accepted:      child.Fitness < parent.Fitness,
		}
		if slot.Accepted {
			p.Parents[i] = child
			p.logger.Debug("child replaced parent", "slot", i, "parent", parent.ID, "child", child.ID, "fitness", child.Fitness)
		}
		result.Slots[i] = slot
	}
	return result
}

// Best returns the parent with the lowest fitness. Ties go to the lower slot.
func (p *ParallelHillClimber) Best() *Solution {
	var best *Solution
	for _, s := range p.Parents {
		if best == nil || s.Fitness < best.Fitness {
			best = s
		}
	}
	return best
}

// ShowBest replays a copy of the best parent in GUI mode. The population is
// not modified; the replay's fitness is returned.
func (p *ParallelHillClimber) ShowBest(ctx context.Context) (float64, error) {
	best := p.Best()
	replay := best.Copy(p.getNextID())
	p.logger.Info("replaying best solution", "id", best.ID, "replay_id", replay.ID, "fitness", best.Fitness)
	if err := p.evaluator.Start(ctx, replay, ModeGUI); err != nil {
		return 0, fmt.Errorf("replaying solution %d: %w", best.ID, err)
	}
	fitness, err := p.evaluator.Wait(ctx, replay)
	if err != nil {
		return 0, fmt.Errorf("replaying solution %d: %w", best.ID, err)
	}
	return fitness, nil
}

// evaluate starts every candidate before waiting on any of them. A timed out
// candidate gets FailedFitness; any other error halts the run.
func (p *ParallelHillClimber) evaluate(ctx context.Context, sols []*Solution, mode Mode) error {
	for _, s := range sols {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.evaluator.Start(ctx, s, mode); err != nil {
			return fmt.Errorf("starting solution %d: %w", s.ID, err)
		}
	}
	for _, s := range sols {
		fitness, err := p.evaluator.Wait(ctx, s)
		switch {
		case errors.Is(err, ErrEvaluationTimeout):
			p.logger.Warn("evaluation timed out, marking as failed", "id", s.ID)
			fitness = FailedFitness
		case err != nil:
			return fmt.Errorf("waiting for solution %d: %w", s.ID, err)
		}
		s.Fitness = fitness
	}
	return nil
}
