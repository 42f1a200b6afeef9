package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/baldhumanity/evo-robotics/hillclimber"
	"github.com/baldhumanity/evo-robotics/scene"
	"github.com/baldhumanity/evo-robotics/sim"
)

// WorkerOptions describe one worker invocation.
type WorkerOptions struct {
	Config  *hillclimber.Config
	WorkDir string
	ID      int
	Mode    hillclimber.Mode
	Engine  sim.Engine
	Trace   *sim.Trace
	Logger  *slog.Logger
}

// RunWorker is the worker side of Process. It loads the scene and the
// candidate's brain from the work directory, deletes the brain file, runs the
// trajectory and writes the result artifact.
func RunWorker(ctx context.Context, o WorkerOptions) (sim.Result, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	world, err := scene.ReadWorld(scene.WorldFile(o.WorkDir))
	if errors.Is(err, os.ErrNotExist) {
		world, err = scene.DefaultWorld(o.Config.Simulation.Gravity), nil
	}
	if err != nil {
		return sim.Result{}, err
	}
	body, err := scene.ReadBody(scene.BodyFile(o.WorkDir))
	if errors.Is(err, os.ErrNotExist) {
		body, err = scene.DefaultBody(), nil
	}
	if err != nil {
		return sim.Result{}, err
	}

	brainPath := scene.BrainFile(o.WorkDir, o.ID)
	brain, err := scene.ReadBrain(brainPath)
	if err != nil {
		return sim.Result{}, err
	}
	if brain.ID != o.ID {
		return sim.Result{}, fmt.Errorf("brain file %s belongs to solution %d", brainPath, brain.ID)
	}
	if err := os.Remove(brainPath); err != nil {
		return sim.Result{}, fmt.Errorf("removing brain file: %w", err)
	}

	opts := SimOptions(o.Config, o.Mode)
	opts.Trace = o.Trace
	opts.Logger = logger
	logger.Debug("trajectory started", "id", o.ID, "mode", o.Mode, "steps", opts.Steps)
	res, err := sim.Run(ctx, o.Engine, world, body, brain, opts)
	if err != nil {
		return res, err
	}
	if err := WriteResult(o.WorkDir, o.ID, res.Fitness); err != nil {
		return res, err
	}
	logger.Debug("result written", "id", o.ID, "fitness", res.Fitness)
	return res, nil
}
