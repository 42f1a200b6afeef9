// Package sim runs one candidate's controller through a full trajectory on a
// physics engine and reports the resulting fitness.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/baldhumanity/evo-robotics/logging"
	"github.com/baldhumanity/evo-robotics/scene"
)

// Engine loads a scene into a fresh simulation instance.
type Engine interface {
	Load(world *scene.World, body *scene.Body) (Instance, error)
}

// Instance is one loaded simulation. It is used by a single goroutine.
type Instance interface {
	// Step advances the simulation by one tick.
	Step() error
	// LinkPosition reports the world position of a link's center.
	LinkPosition(link string) (scene.Vec3, error)
	// TouchSensorValue is 1 while the link touches something and -1 otherwise.
	TouchSensorValue(link string) float64
	// ActuateJoint drives a joint's motor toward targetAngle using at most maxForce.
	ActuateJoint(joint string, targetAngle, maxForce float64) error
	Close() error
}

// Options control a single trajectory.
type Options struct {
	Steps       int
	MaxForce    float64
	FitnessLink string
	Activation  string
	Aggregation string
	// TickDelay paces the run for live observation. Zero runs flat out.
	TickDelay time.Duration
	Trace     *Trace
	Logger    *slog.Logger
}

// Result is the outcome of a trajectory. Lower Fitness is better.
type Result struct {
	Fitness  float64
	Ticks    int
	Position scene.Vec3
}

// Run drives the brain's neuron graph for opts.Steps ticks: each tick reads
// the sensors, updates the graph, sends every motor command to its joint and
// steps the engine. Fitness is the x coordinate of opts.FitnessLink at the end.
func Run(ctx context.Context, engine Engine, world *scene.World, body *scene.Body, brain *scene.Brain, opts Options) (Result, error) {
	if opts.Steps <= 0 {
		return Result{}, fmt.Errorf("steps must be positive, got %d", opts.Steps)
	}
	if _, ok := body.Link(opts.FitnessLink); !ok {
		return Result{}, fmt.Errorf("fitness link %q not in body", opts.FitnessLink)
	}
	if err := brain.Validate(body); err != nil {
		return Result{}, fmt.Errorf("brain %d: %w", brain.ID, err)
	}
	graph, err := brain.Graph(opts.Activation, opts.Aggregation)
	if err != nil {
		return Result{}, fmt.Errorf("brain %d: %w", brain.ID, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	inst, err := engine.Load(world, body)
	if err != nil {
		return Result{}, fmt.Errorf("loading scene: %w", err)
	}
	defer inst.Close()

	motors := graph.Motors()
	start := time.Now()
	for tick := 0; tick < opts.Steps; tick++ {
		if err := ctx.Err(); err != nil {
			return Result{Ticks: tick}, err
		}

		graph.Update(inst)
		for _, m := range motors {
			angle, _ := graph.MotorCommand(m.ID)
			if err := inst.ActuateJoint(m.Joint, angle, opts.MaxForce); err != nil {
				return Result{Ticks: tick}, fmt.Errorf("tick %d: %w", tick, err)
			}
		}
		if err := inst.Step(); err != nil {
			return Result{Ticks: tick}, fmt.Errorf("tick %d: %w", tick, err)
		}
		if opts.Trace != nil {
			opts.Trace.record(tick, graph)
		}

		if opts.TickDelay > 0 {
			logger.Log(ctx, logging.LevelTrace, "tick", "brain", brain.ID, "tick", tick)
			timer := time.NewTimer(opts.TickDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Result{Ticks: tick + 1}, ctx.Err()
			case <-timer.C:
			}
		}
	}

	pos, err := inst.LinkPosition(opts.FitnessLink)
	if err != nil {
		return Result{Ticks: opts.Steps}, err
	}
	logger.Debug("trajectory finished",
		"brain", brain.ID,
		"ticks", opts.Steps,
		"x", pos[0],
		"elapsed", time.Since(start))
	return Result{Fitness: pos[0], Ticks: opts.Steps, Position: pos}, nil
}
