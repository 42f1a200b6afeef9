package nn

import (
	"fmt"
	"math"
)

// ActivationFunc squashes a neuron's aggregated input into its activation value.
type ActivationFunc func(x float64) float64

// DefaultActivation is used when no activation is configured.
const DefaultActivation = "tanh"

// Activations maps configuration names to activation functions.
var Activations = map[string]ActivationFunc{
	"tanh":     math.Tanh,
	"sigmoid":  Sigmoid,
	"clamped":  Clamped,
	"identity": Identity,
	"sine":     math.Sin,
}

// GetActivation retrieves an activation function by name.
func GetActivation(name string) (ActivationFunc, error) {
	if name == "" {
		name = DefaultActivation
	}
	if fn, ok := Activations[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("unknown activation function: %s", name)
}

// Sigmoid is the logistic function, steepened the same way neat-python does.
func Sigmoid(x float64) float64 {
	const k = 4.9
	return 1.0 / (1.0 + math.Exp(-k*x))
}

// Clamped limits x to [-1, 1].
func Clamped(x float64) float64 {
	return math.Max(-1.0, math.Min(x, 1.0))
}

// Identity returns x unchanged.
func Identity(x float64) float64 {
	return x
}
