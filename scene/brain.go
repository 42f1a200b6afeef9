package scene

import (
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/baldhumanity/evo-robotics/hillclimber/nn"
	"github.com/baldhumanity/evo-robotics/internal/atomicfile"
)

// Neuron types as written in brain files.
const (
	SensorNeuron = "sensor"
	HiddenNeuron = "hidden"
	MotorNeuron  = "motor"
)

// NeuronSpec declares one neuron of a brain.
type NeuronSpec struct {
	Name  int    `yaml:"name"`
	Type  string `yaml:"type"`
	Link  string `yaml:"link,omitempty"`
	Joint string `yaml:"joint,omitempty"`
}

// SynapseSpec declares a weighted connection between two neurons.
type SynapseSpec struct {
	Source int     `yaml:"source"`
	Target int     `yaml:"target"`
	Weight float64 `yaml:"weight"`
}

// Brain is the serialized controller of one candidate.
type Brain struct {
	ID       int           `yaml:"id"`
	Neurons  []NeuronSpec  `yaml:"neurons"`
	Synapses []SynapseSpec `yaml:"synapses"`
}

// BrainFile is the per-candidate brain path inside dir.
func BrainFile(dir string, id int) string {
	return filepath.Join(dir, fmt.Sprintf("brain%d.yaml", id))
}

// WorldFile is the shared world description path inside dir.
func WorldFile(dir string) string {
	return filepath.Join(dir, "world.yaml")
}

// BodyFile is the shared body description path inside dir.
func BodyFile(dir string) string {
	return filepath.Join(dir, "body.yaml")
}

// Validate checks that every sensor link and motor joint exists on the body.
func (b *Brain) Validate(body *Body) error {
	for _, n := range b.Neurons {
		switch n.Type {
		case SensorNeuron:
			if _, ok := body.Link(n.Link); !ok {
				return fmt.Errorf("sensor neuron %d: body has no link %q", n.Name, n.Link)
			}
		case MotorNeuron:
			if _, ok := body.Joint(n.Joint); !ok {
				return fmt.Errorf("motor neuron %d: body has no joint %q", n.Name, n.Joint)
			}
		case HiddenNeuron:
		default:
			return fmt.Errorf("neuron %d: unknown type %q", n.Name, n.Type)
		}
	}
	return nil
}

// Graph instantiates the neuron graph described by the brain. Empty names
// select the default activation and aggregation.
func (b *Brain) Graph(activation, aggregation string) (*nn.Graph, error) {
	fn, err := nn.GetActivation(activation)
	if err != nil {
		return nil, err
	}
	agg, err := nn.GetAggregation(aggregation)
	if err != nil {
		return nil, err
	}
	neurons := make([]nn.Neuron, 0, len(b.Neurons))
	for _, spec := range b.Neurons {
		n := nn.Neuron{ID: spec.Name, Link: spec.Link, Joint: spec.Joint}
		switch spec.Type {
		case SensorNeuron:
			n.Kind = nn.Sensor
		case HiddenNeuron:
			n.Kind = nn.Hidden
		case MotorNeuron:
			n.Kind = nn.Motor
		default:
			return nil, fmt.Errorf("neuron %d: unknown type %q", spec.Name, spec.Type)
		}
		neurons = append(neurons, n)
	}
	synapses := make([]nn.Synapse, 0, len(b.Synapses))
	for _, s := range b.Synapses {
		synapses = append(synapses, nn.Synapse{Source: s.Source, Target: s.Target, Weight: s.Weight})
	}
	return nn.NewGraph(neurons, synapses, nn.WithActivation(fn), nn.WithAggregation(agg))
}

// WriteBrain stores a brain description at path atomically, so a worker
// started afterwards never reads a partial file.
func WriteBrain(path string, b *Brain) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding brain %d: %w", b.ID, err)
	}
	return atomicfile.Write(path, data, 0o644)
}

// ReadBrain loads a brain description.
func ReadBrain(path string) (*Brain, error) {
	b := &Brain{}
	if err := readYAML(path, b); err != nil {
		return nil, err
	}
	return b, nil
}
