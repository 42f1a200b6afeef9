// Package nn builds and steps the neuron graph that turns link sensor readings
// into joint motor commands once per simulation tick.
package nn

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Configuration errors reported by NewGraph.
var (
	ErrDuplicateNeuron  = errors.New("duplicate neuron")
	ErrUnknownNeuron    = errors.New("synapse references unknown neuron")
	ErrSensorTarget     = errors.New("synapse targets a sensor neuron")
	ErrDuplicateSynapse = errors.New("duplicate synapse")
	ErrCycle            = errors.New("neuron graph has a cycle")
)

// Kind identifies the role of a neuron in the graph.
type Kind int

const (
	Sensor Kind = iota
	Hidden
	Motor
)

func (k Kind) String() string {
	switch k {
	case Sensor:
		return "sensor"
	case Hidden:
		return "hidden"
	case Motor:
		return "motor"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Neuron is a node of the graph. Link is set for sensors, Joint for motors.
type Neuron struct {
	ID    int
	Kind  Kind
	Link  string
	Joint string
	Value float64
}

// Synapse is a weighted directed connection from Source to Target.
type Synapse struct {
	Source int
	Target int
	Weight float64
}

// SensorSource supplies the raw reading of a link's touch sensor.
type SensorSource interface {
	TouchSensorValue(link string) float64
}

// Graph is a validated neuron graph with a fixed evaluation order.
type Graph struct {
	neurons     map[int]*Neuron
	sensors     []int // sensor ids, ascending
	motors      []int // motor ids, ascending
	evalOrder   []int // non-sensor ids in dependency order
	incoming    map[int][]Synapse
	activation  ActivationFunc
	aggregation AggregationFunc
	scratch     []float64
}

// Option configures a Graph.
type Option func(*Graph)

// WithActivation overrides the activation applied to hidden and motor neurons.
func WithActivation(fn ActivationFunc) Option {
	return func(g *Graph) {
		if fn != nil {
			g.activation = fn
		}
	}
}

// WithAggregation overrides how weighted inputs are combined.
func WithAggregation(fn AggregationFunc) Option {
	return func(g *Graph) {
		if fn != nil {
			g.aggregation = fn
		}
	}
}

// NewGraph validates the neurons and synapses and computes the order in which
// non-sensor neurons are updated. All configuration problems are reported here
// so that Update never fails.
func NewGraph(neurons []Neuron, synapses []Synapse, opts ...Option) (*Graph, error) {
	g := &Graph{
		neurons:  make(map[int]*Neuron, len(neurons)),
		incoming: make(map[int][]Synapse),
	}
	g.activation, _ = GetActivation(DefaultActivation)
	g.aggregation, _ = GetAggregation(DefaultAggregation)
	for _, opt := range opts {
		opt(g)
	}

	dg := simple.NewDirectedGraph()
	for _, n := range neurons {
		if _, exists := g.neurons[n.ID]; exists {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateNeuron, n.ID)
		}
		switch n.Kind {
		case Sensor:
			if n.Link == "" {
				return nil, fmt.Errorf("sensor neuron %d has no link", n.ID)
			}
			g.sensors = append(g.sensors, n.ID)
		case Motor:
			if n.Joint == "" {
				return nil, fmt.Errorf("motor neuron %d has no joint", n.ID)
			}
			g.motors = append(g.motors, n.ID)
		case Hidden:
		default:
			return nil, fmt.Errorf("neuron %d has invalid kind %v", n.ID, n.Kind)
		}
		node := n
		node.Value = 0
		g.neurons[n.ID] = &node
		dg.AddNode(simple.Node(int64(n.ID)))
	}
	sort.Ints(g.sensors)
	sort.Ints(g.motors)

	seen := make(map[[2]int]bool, len(synapses))
	for _, s := range synapses {
		src, ok := g.neurons[s.Source]
		if !ok {
			return nil, fmt.Errorf("%w: source %d (synapse %d->%d)", ErrUnknownNeuron, s.Source, s.Source, s.Target)
		}
		dst, ok := g.neurons[s.Target]
		if !ok {
			return nil, fmt.Errorf("%w: target %d (synapse %d->%d)", ErrUnknownNeuron, s.Target, s.Source, s.Target)
		}
		if dst.Kind == Sensor {
			return nil, fmt.Errorf("%w: %d->%d", ErrSensorTarget, s.Source, s.Target)
		}
		key := [2]int{s.Source, s.Target}
		if seen[key] {
			return nil, fmt.Errorf("%w: %d->%d", ErrDuplicateSynapse, s.Source, s.Target)
		}
		seen[key] = true
		// simple.DirectedGraph panics on self edges.
		if src.ID == dst.ID {
			return nil, fmt.Errorf("%w: self-connection on neuron %d", ErrCycle, src.ID)
		}
		dg.SetEdge(dg.NewEdge(simple.Node(int64(src.ID)), simple.Node(int64(dst.ID))))
		g.incoming[s.Target] = append(g.incoming[s.Target], s)
	}

	// Ties are broken by node ID, so the order is deterministic.
	sorted, err := topo.SortStabilized(dg, nil)
	if err != nil {
		var cycles topo.Unorderable
		if errors.As(err, &cycles) {
			return nil, fmt.Errorf("%w: %s", ErrCycle, describeCycles(cycles))
		}
		return nil, fmt.Errorf("sorting neuron graph: %w", err)
	}
	for _, node := range sorted {
		id := int(node.ID())
		if g.neurons[id].Kind != Sensor {
			g.evalOrder = append(g.evalOrder, id)
		}
	}
	return g, nil
}

func describeCycles(cycles topo.Unorderable) string {
	var ids []int
	for _, component := range cycles {
		for _, n := range component {
			ids = append(ids, int(n.ID()))
		}
	}
	sort.Ints(ids)
	return fmt.Sprintf("neurons %v", ids)
}

// Update refreshes every sensor from src and then recomputes hidden and motor
// neurons in dependency order: value = activation(aggregate of weight * source
// value). With the default sum aggregation that is activation(Σ w·v). A
// neuron without inputs has raw value 0.
func (g *Graph) Update(src SensorSource) {
	for _, id := range g.sensors {
		n := g.neurons[id]
		n.Value = src.TouchSensorValue(n.Link)
	}
	for _, id := range g.evalOrder {
		in := g.incoming[id]
		raw := 0.0
		if len(in) > 0 {
			g.scratch = g.scratch[:0]
			for _, s := range in {
				g.scratch = append(g.scratch, s.Weight*g.neurons[s.Source].Value)
			}
			raw = g.aggregation(g.scratch)
		}
		g.neurons[id].Value = g.activation(raw)
	}
}

// Value returns the current activation of a neuron.
func (g *Graph) Value(id int) (float64, bool) {
	n, ok := g.neurons[id]
	if !ok {
		return 0, false
	}
	return n.Value, true
}

// MotorCommand returns the target angle produced by a motor neuron.
func (g *Graph) MotorCommand(id int) (float64, bool) {
	n, ok := g.neurons[id]
	if !ok || n.Kind != Motor {
		return 0, false
	}
	return n.Value, true
}

// Motors returns copies of the motor neurons in ascending id order.
func (g *Graph) Motors() []Neuron {
	out := make([]Neuron, 0, len(g.motors))
	for _, id := range g.motors {
		out = append(out, *g.neurons[id])
	}
	return out
}

// Sensors returns copies of the sensor neurons in ascending id order.
func (g *Graph) Sensors() []Neuron {
	out := make([]Neuron, 0, len(g.sensors))
	for _, id := range g.sensors {
		out = append(out, *g.neurons[id])
	}
	return out
}

// EvalOrder returns the ids of non-sensor neurons in the order Update visits them.
func (g *Graph) EvalOrder() []int {
	return append([]int(nil), g.evalOrder...)
}
