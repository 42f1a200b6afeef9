package hillclimber

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/baldhumanity/evo-robotics/hillclimber/nn"
)

// Evaluation backends.
const (
	BackendProcess = "process"
	BackendLocal   = "local"
)

// Config stores every parameter of a search run.
type Config struct {
	HillClimber HillClimberConfig
	Brain       BrainConfig
	Simulation  SimulationConfig
	Evaluation  EvaluationConfig
}

// HillClimberConfig holds the parameters of the evolutionary loop.
type HillClimberConfig struct {
	PopulationSize      int     `ini:"population_size"`
	NumberOfGenerations int     `ini:"number_of_generations"`
	Seed                int64   `ini:"seed"` // 0 picks a time based seed
	WeightMinValue      float64 `ini:"weight_min_value"`
	WeightMaxValue      float64 `ini:"weight_max_value"`
}

// BrainConfig describes the fixed controller topology.
type BrainConfig struct {
	SensorLinks []string `ini:"sensor_links" delim:" "`
	MotorJoints []string `ini:"motor_joints" delim:" "`
	Activation  string   `ini:"activation"`
	Aggregation string   `ini:"aggregation"`
}

// SimulationConfig controls a single trajectory.
type SimulationConfig struct {
	Steps        int           `ini:"steps"`
	Gravity      float64       `ini:"gravity"`
	MaxForce     float64       `ini:"max_force"`
	FitnessLink  string        `ini:"fitness_link"`
	GUITickDelay time.Duration `ini:"gui_tick_delay"`
}

// EvaluationConfig selects and tunes the evaluator bridge.
type EvaluationConfig struct {
	Backend      string        `ini:"backend"` // "process" or "local"
	WorkDir      string        `ini:"work_dir"`
	PollInterval time.Duration `ini:"poll_interval"`
	Timeout      time.Duration `ini:"timeout"` // 0 waits forever
	Workers      int           `ini:"workers"`
}

// DefaultConfig returns the built-in configuration: ten lineages of the
// three-link walker for ten generations.
func DefaultConfig() *Config {
	return &Config{
		HillClimber: HillClimberConfig{
			PopulationSize:      10,
			NumberOfGenerations: 10,
			WeightMinValue:      -1,
			WeightMaxValue:      1,
		},
		Brain: BrainConfig{
			SensorLinks: []string{"Torso", "BackLeg", "FrontLeg"},
			MotorJoints: []string{"Torso_FrontLeg", "Torso_BackLeg"},
			Activation:  nn.DefaultActivation,
			Aggregation: nn.DefaultAggregation,
		},
		Simulation: SimulationConfig{
			Steps:        1000,
			Gravity:      -9.8,
			MaxForce:     20,
			FitnessLink:  "Torso",
			GUITickDelay: time.Millisecond,
		},
		Evaluation: EvaluationConfig{
			Backend:      BackendProcess,
			WorkDir:      "data",
			PollInterval: 10 * time.Millisecond,
			Timeout:      5 * time.Minute,
			Workers:      runtime.NumCPU(),
		},
	}
}

// LoadConfig loads configuration parameters from an INI file. Keys missing
// from the file keep their DefaultConfig values.
func LoadConfig(filePath string) (*Config, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}

	config := DefaultConfig()
	sections := []struct {
		name string
		dst  any
	}{
		{"HillClimber", &config.HillClimber},
		{"Brain", &config.Brain},
		{"Simulation", &config.Simulation},
		{"Evaluation", &config.Evaluation},
	}
	for _, s := range sections {
		if err := file.Section(s.name).MapTo(s.dst); err != nil {
			return nil, fmt.Errorf("failed to map [%s] section: %w", s.name, err)
		}
	}

	config.Brain.Activation = cleanIniString(config.Brain.Activation)
	config.Brain.Aggregation = cleanIniString(config.Brain.Aggregation)
	config.Simulation.FitnessLink = cleanIniString(config.Simulation.FitnessLink)
	config.Evaluation.Backend = strings.ToLower(cleanIniString(config.Evaluation.Backend))
	config.Evaluation.WorkDir = cleanIniString(config.Evaluation.WorkDir)
	config.Brain.SensorLinks = cleanList(config.Brain.SensorLinks)
	config.Brain.MotorJoints = cleanList(config.Brain.MotorJoints)

	if config.Brain.Activation == "" {
		config.Brain.Activation = nn.DefaultActivation
	}
	if config.Brain.Aggregation == "" {
		config.Brain.Aggregation = nn.DefaultAggregation
	}
	if config.Evaluation.Workers <= 0 {
		config.Evaluation.Workers = runtime.NumCPU()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	hc := c.HillClimber
	if hc.PopulationSize <= 0 {
		return fmt.Errorf("config error: population_size must be positive")
	}
	if hc.NumberOfGenerations < 0 {
		return fmt.Errorf("config error: number_of_generations cannot be negative")
	}
	if hc.WeightMaxValue < hc.WeightMinValue {
		return fmt.Errorf("config error: weight_max_value cannot be less than weight_min_value")
	}

	if len(c.Brain.SensorLinks) == 0 {
		return fmt.Errorf("config error: sensor_links must be specified")
	}
	if len(c.Brain.MotorJoints) == 0 {
		return fmt.Errorf("config error: motor_joints must be specified")
	}
	if dup := firstDuplicate(c.Brain.SensorLinks); dup != "" {
		return fmt.Errorf("config error: duplicate sensor link '%s'", dup)
	}
	if dup := firstDuplicate(c.Brain.MotorJoints); dup != "" {
		return fmt.Errorf("config error: duplicate motor joint '%s'", dup)
	}
	if _, err := nn.GetActivation(c.Brain.Activation); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if _, err := nn.GetAggregation(c.Brain.Aggregation); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.Simulation.Steps <= 0 {
		return fmt.Errorf("config error: steps must be positive")
	}
	if c.Simulation.MaxForce <= 0 {
		return fmt.Errorf("config error: max_force must be positive")
	}
	if c.Simulation.FitnessLink == "" {
		return fmt.Errorf("config error: fitness_link must be specified")
	}
	if c.Simulation.GUITickDelay < 0 {
		return fmt.Errorf("config error: gui_tick_delay cannot be negative")
	}

	switch c.Evaluation.Backend {
	case BackendProcess, BackendLocal:
	default:
		return fmt.Errorf("config error: invalid backend '%s', must be one of 'process', 'local'", c.Evaluation.Backend)
	}
	if c.Evaluation.Backend == BackendProcess && c.Evaluation.WorkDir == "" {
		return fmt.Errorf("config error: work_dir must be specified for the process backend")
	}
	if c.Evaluation.PollInterval <= 0 {
		return fmt.Errorf("config error: poll_interval must be positive")
	}
	if c.Evaluation.Timeout < 0 {
		return fmt.Errorf("config error: timeout cannot be negative")
	}
	return nil
}

// NumWeights is the number of entries in every candidate's weight matrix.
func (c *Config) NumWeights() int {
	return len(c.Brain.SensorLinks) * len(c.Brain.MotorJoints)
}

// cleanIniString removes inline comments and trims whitespace from a string read from INI.
func cleanIniString(s string) string {
	if idx := strings.IndexAny(s, "#;"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// cleanList trims list entries and drops everything after an inline comment.
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if strings.HasPrefix(strings.TrimSpace(item), "#") || strings.HasPrefix(strings.TrimSpace(item), ";") {
			break
		}
		if item = cleanIniString(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func firstDuplicate(names []string) string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return n
		}
		seen[n] = true
	}
	return ""
}
