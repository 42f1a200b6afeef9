package hillclimber

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIni(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 6, cfg.NumWeights())
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeIni(t, `
[HillClimber]
population_size       = 4
number_of_generations = 5
seed                  = 7

[Brain]
sensor_links = Torso FrontLeg
activation   = sigmoid ; steeper

[Simulation]
steps          = 250
gui_tick_delay = 5ms

[Evaluation]
backend       = Local
poll_interval = 20ms
timeout       = 0s
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.HillClimber.PopulationSize)
	assert.Equal(t, 5, cfg.HillClimber.NumberOfGenerations)
	assert.Equal(t, int64(7), cfg.HillClimber.Seed)
	assert.Equal(t, -1.0, cfg.HillClimber.WeightMinValue)
	assert.Equal(t, []string{"Torso", "FrontLeg"}, cfg.Brain.SensorLinks)
	assert.Equal(t, []string{"Torso_FrontLeg", "Torso_BackLeg"}, cfg.Brain.MotorJoints)
	assert.Equal(t, "sigmoid", cfg.Brain.Activation)
	assert.Equal(t, 250, cfg.Simulation.Steps)
	assert.Equal(t, 5*time.Millisecond, cfg.Simulation.GUITickDelay)
	assert.Equal(t, "Torso", cfg.Simulation.FitnessLink)
	assert.Equal(t, BackendLocal, cfg.Evaluation.Backend)
	assert.Equal(t, 20*time.Millisecond, cfg.Evaluation.PollInterval)
	assert.Equal(t, time.Duration(0), cfg.Evaluation.Timeout)
	assert.Equal(t, "data", cfg.Evaluation.WorkDir)
	assert.Positive(t, cfg.Evaluation.Workers)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero population", "[HillClimber]\npopulation_size = 0\n"},
		{"negative generations", "[HillClimber]\nnumber_of_generations = -1\n"},
		{"inverted weights", "[HillClimber]\nweight_min_value = 1\nweight_max_value = -1\n"},
		{"duplicate sensor", "[Brain]\nsensor_links = Torso Torso\n"},
		{"unknown activation", "[Brain]\nactivation = softmax\n"},
		{"zero steps", "[Simulation]\nsteps = 0\n"},
		{"unknown backend", "[Evaluation]\nbackend = grpc\n"},
		{"zero poll interval", "[Evaluation]\npoll_interval = 0s\n"},
		{"negative timeout", "[Evaluation]\ntimeout = -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeIni(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
}
