package nn

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// AggregationFunc combines a neuron's weighted inputs into its raw value.
// It is never called with an empty slice.
type AggregationFunc func(inputs []float64) float64

// DefaultAggregation is used when no aggregation is configured.
const DefaultAggregation = "sum"

// Aggregations maps configuration names to aggregation functions.
var Aggregations = map[string]AggregationFunc{
	"sum":     floats.Sum,
	"product": AggregateProduct,
	"min":     floats.Min,
	"max":     floats.Max,
	"maxabs":  AggregateMaxAbs,
	"mean":    AggregateMean,
	"average": AggregateMean,
	"median":  AggregateMedian,
}

// GetAggregation retrieves an aggregation function by name.
func GetAggregation(name string) (AggregationFunc, error) {
	if name == "" {
		name = DefaultAggregation
	}
	if fn, ok := Aggregations[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("unknown aggregation function: %s", name)
}

// AggregateProduct multiplies the inputs.
func AggregateProduct(inputs []float64) float64 {
	return floats.Prod(inputs)
}

// AggregateMaxAbs returns the input with the largest magnitude, sign kept.
func AggregateMaxAbs(inputs []float64) float64 {
	best := inputs[0]
	for _, v := range inputs[1:] {
		if math.Abs(v) > math.Abs(best) {
			best = v
		}
	}
	return best
}

// AggregateMean is the arithmetic mean.
func AggregateMean(inputs []float64) float64 {
	return stat.Mean(inputs, nil)
}

// AggregateMedian is the median; even counts average the middle pair.
func AggregateMedian(inputs []float64) float64 {
	sorted := append([]float64(nil), inputs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
