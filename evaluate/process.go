package evaluate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/baldhumanity/evo-robotics/hillclimber"
	"github.com/baldhumanity/evo-robotics/scene"
)

// Process evaluates each candidate in a separate worker process. Start writes
// the candidate's brain file and launches
//
//	<executable> <args...> --mode <mode> --id <id> --config <path> --work-dir <dir>
//
// without waiting for it. The worker writes fitness<id>.txt atomically and
// Wait polls for that file, parses it and deletes it.
type Process struct {
	cfg        *hillclimber.Config
	configPath string
	executable string
	args       []string
	world      *scene.World
	body       *scene.Body
	output     io.Writer
	logger     *slog.Logger

	mu       sync.Mutex
	prepared bool
	running  map[int]*exec.Cmd
	exited   map[int]error
}

// ErrWorkerFailed is returned by Wait when the worker exited without writing
// a result artifact.
var ErrWorkerFailed = errors.New("worker exited without a result")

// ProcessOption configures a Process.
type ProcessOption func(*Process)

// WithExecutable sets the worker binary and the arguments placed before the
// per-candidate flags. The default is the current executable with "simulate".
func WithExecutable(path string, args ...string) ProcessOption {
	return func(p *Process) {
		p.executable = path
		p.args = args
	}
}

// WithScene replaces the default world and body.
func WithScene(world *scene.World, body *scene.Body) ProcessOption {
	return func(p *Process) {
		p.world, p.body = world, body
	}
}

// WithWorkerOutput sends worker stdout and stderr to w instead of os.Stderr.
func WithWorkerOutput(w io.Writer) ProcessOption {
	return func(p *Process) { p.output = w }
}

// WithProcessLogger sets the logger.
func WithProcessLogger(l *slog.Logger) ProcessOption {
	return func(p *Process) {
		if l != nil {
			p.logger = l
		}
	}
}

var (
	_ hillclimber.Evaluator = (*Process)(nil)
	_ hillclimber.Resetter  = (*Process)(nil)
)

// NewProcess returns a process bridge. configPath is handed to every worker
// so it runs with the same configuration as the coordinator.
func NewProcess(cfg *hillclimber.Config, configPath string, opts ...ProcessOption) (*Process, error) {
	if cfg.Evaluation.WorkDir == "" {
		return nil, errors.New("work dir is not set")
	}
	p := &Process{
		cfg:        cfg,
		configPath: configPath,
		args:       []string{"simulate"},
		world:      scene.DefaultWorld(cfg.Simulation.Gravity),
		body:       scene.DefaultBody(),
		output:     os.Stderr,
		logger:     slog.Default(),
		running:    make(map[int]*exec.Cmd),
		exited:     make(map[int]error),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locating worker executable: %w", err)
		}
		p.executable = exe
	}
	return p, nil
}

// Reset removes artifacts of earlier runs from the work directory.
func (p *Process) Reset() error {
	p.mu.Lock()
	clear(p.exited)
	p.mu.Unlock()
	return Cleanup(p.cfg.Evaluation.WorkDir)
}

// prepare creates the work directory and writes the shared scene files once.
func (p *Process) prepare() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.prepared {
		return nil
	}
	if err := p.body.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if _, ok := p.body.Link(p.cfg.Simulation.FitnessLink); !ok {
		return fmt.Errorf("config error: fitness link %q not in body", p.cfg.Simulation.FitnessLink)
	}
	dir := p.cfg.Evaluation.WorkDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating work dir: %w", err)
	}
	if err := scene.WriteWorld(scene.WorldFile(dir), p.world); err != nil {
		return err
	}
	if err := scene.WriteBody(scene.BodyFile(dir), p.body); err != nil {
		return err
	}
	p.prepared = true
	return nil
}

// Start writes the brain file and launches the worker. It returns as soon as
// the process has started.
func (p *Process) Start(ctx context.Context, s *hillclimber.Solution, mode hillclimber.Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.prepare(); err != nil {
		return err
	}
	dir := p.cfg.Evaluation.WorkDir
	brain, err := s.Brain(p.cfg.Brain)
	if err != nil {
		return err
	}
	// Workers would only fail on these after launch.
	if err := brain.Validate(p.body); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if _, err := brain.Graph(p.cfg.Brain.Activation, p.cfg.Brain.Aggregation); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := scene.WriteBrain(scene.BrainFile(dir, s.ID), brain); err != nil {
		return err
	}

	args := append(append([]string(nil), p.args...),
		"--mode", string(mode),
		"--id", strconv.Itoa(s.ID),
		"--config", p.configPath,
		"--work-dir", dir)
	cmd := exec.Command(p.executable, args...)
	cmd.Stdout = p.output
	cmd.Stderr = p.output
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching worker for solution %d: %w", s.ID, err)
	}

	p.mu.Lock()
	p.running[s.ID] = cmd
	delete(p.exited, s.ID)
	p.mu.Unlock()
	p.logger.Debug("worker launched", "id", s.ID, "pid", cmd.Process.Pid, "mode", mode)

	go func(id int) {
		err := cmd.Wait()
		p.mu.Lock()
		delete(p.running, id)
		p.exited[id] = err
		p.mu.Unlock()
		if err != nil {
			p.logger.Warn("worker exited with error", "id", id, "err", err)
		}
	}(s.ID)
	return nil
}

// Wait polls for the candidate's result artifact. Once it appears it is read
// and deleted. If the worker exits without writing it, ErrWorkerFailed is
// returned. If the configured timeout passes first the worker is killed and
// hillclimber.ErrEvaluationTimeout is returned.
func (p *Process) Wait(ctx context.Context, s *hillclimber.Solution) (float64, error) {
	path := ResultPath(p.cfg.Evaluation.WorkDir, s.ID)
	ticker := time.NewTicker(p.cfg.Evaluation.PollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if p.cfg.Evaluation.Timeout > 0 {
		timer := time.NewTimer(p.cfg.Evaluation.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		// Checked before reading: a worker that exited has already written
		// its artifact if it ever will.
		exited, exitErr := p.exitStatus(s.ID)
		fitness, err := ReadResult(path)
		switch {
		case err == nil:
			if rmErr := os.Remove(path); rmErr != nil {
				return 0, fmt.Errorf("removing result of solution %d: %w", s.ID, rmErr)
			}
			return fitness, nil
		case errors.Is(err, ErrMalformedFitness):
			_ = os.Remove(path)
			return 0, fmt.Errorf("solution %d: %w", s.ID, err)
		case !errors.Is(err, os.ErrNotExist):
			return 0, fmt.Errorf("reading result of solution %d: %w", s.ID, err)
		case exited:
			if exitErr != nil {
				return 0, fmt.Errorf("solution %d: %w: %v", s.ID, ErrWorkerFailed, exitErr)
			}
			return 0, fmt.Errorf("solution %d: %w", s.ID, ErrWorkerFailed)
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-deadline:
			p.kill(s.ID)
			return 0, fmt.Errorf("solution %d after %s: %w", s.ID, p.cfg.Evaluation.Timeout, hillclimber.ErrEvaluationTimeout)
		case <-ticker.C:
		}
	}
}

func (p *Process) exitStatus(id int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	err, ok := p.exited[id]
	return ok, err
}

func (p *Process) kill(id int) {
	p.mu.Lock()
	cmd := p.running[id]
	p.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// Running reports the number of worker processes that have not exited.
func (p *Process) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.running)
}
