package hillclimber

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/baldhumanity/evo-robotics/scene"
)

// FailedFitness marks a candidate whose evaluation never produced a result.
// It loses every comparison.
var FailedFitness = math.Inf(1)

// Solution is one candidate controller: a dense sensor x motor weight matrix
// fully connecting every sensor to every motor. Lower Fitness is better.
type Solution struct {
	ID      int
	Weights *mat.Dense
	Fitness float64
	lo, hi  float64
}

// NewSolution draws every weight uniformly from [lo, hi].
func NewSolution(id, sensors, motors int, rng *rand.Rand, lo, hi float64) *Solution {
	data := make([]float64, sensors*motors)
	for i := range data {
		data[i] = lo + rng.Float64()*(hi-lo)
	}
	return &Solution{
		ID:      id,
		Weights: mat.NewDense(sensors, motors, data),
		lo:      lo,
		hi:      hi,
	}
}

// Copy returns a child with independent weight storage and a new id.
func (s *Solution) Copy(id int) *Solution {
	return &Solution{
		ID:      id,
		Weights: mat.DenseCopyOf(s.Weights),
		Fitness: s.Fitness,
		lo:      s.lo,
		hi:      s.hi,
	}
}

// Mutate overwrites exactly one weight, chosen uniformly, with a fresh draw
// from the weight range. It returns the position it changed.
func (s *Solution) Mutate(rng *rand.Rand) (row, col int) {
	r, c := s.Weights.Dims()
	row, col = rng.Intn(r), rng.Intn(c)
	s.Weights.Set(row, col, s.lo+rng.Float64()*(s.hi-s.lo))
	return row, col
}

// Weight returns the synapse weight from sensor row to motor col.
func (s *Solution) Weight(row, col int) float64 {
	return s.Weights.At(row, col)
}

// Dims returns the number of sensors and motors.
func (s *Solution) Dims() (sensors, motors int) {
	return s.Weights.Dims()
}

// Brain materializes the solution as a brain description. Sensor neurons
// are numbered 0..S-1 and motor neurons S..S+M-1.
func (s *Solution) Brain(cfg BrainConfig) (*scene.Brain, error) {
	sensors, motors := s.Dims()
	if sensors != len(cfg.SensorLinks) || motors != len(cfg.MotorJoints) {
		return nil, fmt.Errorf("solution %d: weight matrix is %dx%d, brain expects %dx%d",
			s.ID, sensors, motors, len(cfg.SensorLinks), len(cfg.MotorJoints))
	}
	b := &scene.Brain{
		ID:       s.ID,
		Neurons:  make([]scene.NeuronSpec, 0, sensors+motors),
		Synapses: make([]scene.SynapseSpec, 0, sensors*motors),
	}
	for i, link := range cfg.SensorLinks {
		b.Neurons = append(b.Neurons, scene.NeuronSpec{Name: i, Type: scene.SensorNeuron, Link: link})
	}
	for j, joint := range cfg.MotorJoints {
		b.Neurons = append(b.Neurons, scene.NeuronSpec{Name: sensors + j, Type: scene.MotorNeuron, Joint: joint})
	}
	for i := 0; i < sensors; i++ {
		for j := 0; j < motors; j++ {
			b.Synapses = append(b.Synapses, scene.SynapseSpec{Source: i, Target: sensors + j, Weight: s.Weights.At(i, j)})
		}
	}
	return b, nil
}

// Failed reports whether the last evaluation of s timed out.
func (s *Solution) Failed() bool {
	return math.IsInf(s.Fitness, 1)
}

func (s *Solution) String() string {
	return fmt.Sprintf("Solution(id=%d, fitness=%.4f)", s.ID, s.Fitness)
}
