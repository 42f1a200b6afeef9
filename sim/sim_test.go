package sim_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/evo-robotics/logging"
	"github.com/baldhumanity/evo-robotics/scene"
	"github.com/baldhumanity/evo-robotics/sim"
	"github.com/baldhumanity/evo-robotics/sim/planar"
)

func walkerBrain(id int, weights [3][2]float64) *scene.Brain {
	b := &scene.Brain{ID: id}
	sensors := []string{"Torso", "BackLeg", "FrontLeg"}
	joints := []string{"Torso_FrontLeg", "Torso_BackLeg"}
	for i, l := range sensors {
		b.Neurons = append(b.Neurons, scene.NeuronSpec{Name: i, Type: scene.SensorNeuron, Link: l})
	}
	for i, j := range joints {
		b.Neurons = append(b.Neurons, scene.NeuronSpec{Name: len(sensors) + i, Type: scene.MotorNeuron, Joint: j})
	}
	for s := range sensors {
		for m := range joints {
			b.Synapses = append(b.Synapses, scene.SynapseSpec{Source: s, Target: len(sensors) + m, Weight: weights[s][m]})
		}
	}
	return b
}

func defaultOptions() sim.Options {
	return sim.Options{Steps: 300, MaxForce: 20, FitnessLink: "Torso"}
}

// scriptedInstance records the order in which Run drives an instance.
type scriptedInstance struct {
	calls []string
	x     float64
}

func (s *scriptedInstance) Load(*scene.World, *scene.Body) (sim.Instance, error) { return s, nil }
func (s *scriptedInstance) Step() error {
	s.calls = append(s.calls, "step")
	s.x -= 0.5
	return nil
}
func (s *scriptedInstance) LinkPosition(string) (scene.Vec3, error) {
	return scene.Vec3{s.x, 0, 0}, nil
}
func (s *scriptedInstance) TouchSensorValue(link string) float64 {
	s.calls = append(s.calls, "sense:"+link)
	return 1
}
func (s *scriptedInstance) ActuateJoint(joint string, _, _ float64) error {
	s.calls = append(s.calls, "act:"+joint)
	return nil
}
func (s *scriptedInstance) Close() error { return nil }

func TestRunSensesActsThenSteps(t *testing.T) {
	fake := &scriptedInstance{}
	opts := defaultOptions()
	opts.Steps = 2
	res, err := sim.Run(context.Background(), fake, scene.DefaultWorld(-9.8), scene.DefaultBody(), walkerBrain(1, [3][2]float64{}), opts)
	require.NoError(t, err)

	tick := []string{"sense:Torso", "sense:BackLeg", "sense:FrontLeg", "act:Torso_FrontLeg", "act:Torso_BackLeg", "step"}
	assert.Equal(t, append(append([]string{}, tick...), tick...), fake.calls)
	assert.Equal(t, -1.0, res.Fitness)
	assert.Equal(t, 2, res.Ticks)
}

func TestRunOnPlanarEngineIsDeterministic(t *testing.T) {
	weights := [3][2]float64{{0.3, -0.8}, {0.9, 0.1}, {-0.6, 0.7}}
	run := func() sim.Result {
		res, err := sim.Run(context.Background(), planar.New(), scene.DefaultWorld(-9.8), scene.DefaultBody(), walkerBrain(7, weights), defaultOptions())
		require.NoError(t, err)
		return res
	}
	first := run()
	assert.Equal(t, first, run())
	assert.Equal(t, first.Position[0], first.Fitness)
	assert.Equal(t, 300, first.Ticks)
}

func TestRunRejectsBadInputs(t *testing.T) {
	world, body := scene.DefaultWorld(-9.8), scene.DefaultBody()
	brain := walkerBrain(1, [3][2]float64{})

	opts := defaultOptions()
	opts.Steps = 0
	_, err := sim.Run(context.Background(), planar.New(), world, body, brain, opts)
	assert.Error(t, err)

	opts = defaultOptions()
	opts.FitnessLink = "Head"
	_, err = sim.Run(context.Background(), planar.New(), world, body, brain, opts)
	assert.Error(t, err)

	opts = defaultOptions()
	opts.Activation = "softmax"
	_, err = sim.Run(context.Background(), planar.New(), world, body, brain, opts)
	assert.Error(t, err)

	bad := walkerBrain(2, [3][2]float64{})
	bad.Neurons[0].Link = "Tail"
	_, err = sim.Run(context.Background(), planar.New(), world, body, bad, defaultOptions())
	assert.Error(t, err)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sim.Run(ctx, planar.New(), scene.DefaultWorld(-9.8), scene.DefaultBody(), walkerBrain(1, [3][2]float64{}), defaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTraceRecordsSensorsAndMotors(t *testing.T) {
	trace := &sim.Trace{}
	opts := defaultOptions()
	opts.Steps = 5
	opts.Trace = trace
	_, err := sim.Run(context.Background(), planar.New(), scene.DefaultWorld(-9.8), scene.DefaultBody(), walkerBrain(1, [3][2]float64{{1, 1}}), opts)
	require.NoError(t, err)
	require.Len(t, trace.Rows, 5*5)

	first := trace.Rows[0]
	assert.Equal(t, 0, first.Tick)
	assert.Equal(t, "sensor", first.Kind)
	assert.Equal(t, "Torso", first.Name)
	assert.Equal(t, -1.0, first.Value)

	var buf bytes.Buffer
	require.NoError(t, trace.Write(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "tick,neuron,kind,name,value", lines[0])
	assert.Len(t, lines, 26)
}

func TestPacedRunLogsTicksAtTraceLevel(t *testing.T) {
	run := func(level string) string {
		var buf bytes.Buffer
		opts := sim.Options{
			Steps:       4,
			MaxForce:    20,
			FitnessLink: "Torso",
			TickDelay:   time.Microsecond,
			Logger:      logging.NewLogger(level, &buf),
		}
		_, err := sim.Run(context.Background(), planar.New(), scene.DefaultWorld(-9.8), scene.DefaultBody(), walkerBrain(1, [3][2]float64{}), opts)
		require.NoError(t, err)
		return buf.String()
	}

	out := run("trace")
	assert.Equal(t, 4, strings.Count(out, "msg=tick"))
	assert.Contains(t, out, "level=TRACE")

	assert.NotContains(t, run("debug"), "msg=tick")
}
