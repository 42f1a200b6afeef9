package hillclimber

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/evo-robotics/scene"
)

func TestNewSolutionDrawsWithinRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := NewSolution(9, 3, 2, rng, -1, 1)
	assert.Equal(t, 9, s.ID)
	assert.Equal(t, 0.0, s.Fitness)
	for _, w := range s.Weights.RawMatrix().Data {
		assert.GreaterOrEqual(t, w, -1.0)
		assert.Less(t, w, 1.0)
	}
}

func TestMutateChangesExactlyOneWeight(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	s := NewSolution(0, 3, 2, rng, -1, 1)
	for trial := 0; trial < 500; trial++ {
		before := append([]float64(nil), s.Weights.RawMatrix().Data...)
		row, col := s.Mutate(rng)
		after := s.Weights.RawMatrix().Data

		changed := 0
		for i := range before {
			if before[i] != after[i] {
				changed++
				assert.Equal(t, row*2+col, i)
			}
		}
		// A fresh draw may coincide with the old value, but never more than one entry moves.
		assert.LessOrEqual(t, changed, 1)
		w := s.Weight(row, col)
		assert.GreaterOrEqual(t, w, -1.0)
		assert.LessOrEqual(t, w, 1.0)
	}
}

func TestCopyIsIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	parent := NewSolution(1, 3, 2, rng, -1, 1)
	parent.Fitness = 2.5
	child := parent.Copy(2)

	assert.Equal(t, 2, child.ID)
	assert.Equal(t, 2.5, child.Fitness)
	assert.Equal(t, parent.Weights.RawMatrix().Data, child.Weights.RawMatrix().Data)

	child.Weights.Set(0, 0, 0.123)
	assert.NotEqual(t, 0.123, parent.Weight(0, 0))
}

func TestBrainConnectsEverySensorToEveryMotor(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSolution(4, 3, 2, rand.New(rand.NewSource(4)), -1, 1)
	b, err := s.Brain(cfg.Brain)
	require.NoError(t, err)

	assert.Equal(t, 4, b.ID)
	require.Len(t, b.Neurons, 5)
	assert.Equal(t, scene.NeuronSpec{Name: 1, Type: scene.SensorNeuron, Link: "BackLeg"}, b.Neurons[1])
	assert.Equal(t, scene.NeuronSpec{Name: 4, Type: scene.MotorNeuron, Joint: "Torso_BackLeg"}, b.Neurons[4])
	require.Len(t, b.Synapses, 6)
	assert.Equal(t, scene.SynapseSpec{Source: 2, Target: 3, Weight: s.Weight(2, 0)}, b.Synapses[4])

	g, err := b.Graph(cfg.Brain.Activation, cfg.Brain.Aggregation)
	require.NoError(t, err)
	assert.Len(t, g.Motors(), 2)
}

func TestBrainRejectsShapeMismatch(t *testing.T) {
	s := NewSolution(0, 2, 2, rand.New(rand.NewSource(5)), -1, 1)
	_, err := s.Brain(DefaultConfig().Brain)
	assert.Error(t, err)
}
