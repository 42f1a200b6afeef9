package sim

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/baldhumanity/evo-robotics/hillclimber/nn"
)

// TraceRow is one neuron's value at one tick.
type TraceRow struct {
	Tick   int     `csv:"tick"`
	Neuron int     `csv:"neuron"`
	Kind   string  `csv:"kind"`
	Name   string  `csv:"name"`
	Value  float64 `csv:"value"`
}

// Trace collects sensor readings and motor commands over a trajectory.
type Trace struct {
	Rows []*TraceRow
}

func (t *Trace) record(tick int, g *nn.Graph) {
	for _, n := range g.Sensors() {
		t.Rows = append(t.Rows, &TraceRow{Tick: tick, Neuron: n.ID, Kind: n.Kind.String(), Name: n.Link, Value: n.Value})
	}
	for _, n := range g.Motors() {
		t.Rows = append(t.Rows, &TraceRow{Tick: tick, Neuron: n.ID, Kind: n.Kind.String(), Name: n.Joint, Value: n.Value})
	}
}

// Write encodes the trace as CSV.
func (t *Trace) Write(w io.Writer) error {
	return gocsv.Marshal(t.Rows, w)
}

// WriteFile stores the trace as a CSV file.
func (t *Trace) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	if err := t.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing trace: %w", err)
	}
	return f.Close()
}
