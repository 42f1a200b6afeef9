package scene

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/evo-robotics/hillclimber/nn"
)

func testBrain() *Brain {
	return &Brain{
		ID: 3,
		Neurons: []NeuronSpec{
			{Name: 0, Type: SensorNeuron, Link: "Torso"},
			{Name: 1, Type: SensorNeuron, Link: "BackLeg"},
			{Name: 2, Type: MotorNeuron, Joint: "Torso_FrontLeg"},
		},
		Synapses: []SynapseSpec{
			{Source: 0, Target: 2, Weight: 0.25},
			{Source: 1, Target: 2, Weight: -0.75},
		},
	}
}

func TestDefaultBodyIsValid(t *testing.T) {
	body := DefaultBody()
	require.NoError(t, body.Validate())

	root, err := body.Root()
	require.NoError(t, err)
	assert.Equal(t, "Torso", root.Name)

	_, ok := body.Joint("Torso_BackLeg")
	assert.True(t, ok)
}

func TestValidateRejectsBrokenBodies(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *Body)
	}{
		{"duplicate link", func(b *Body) { b.Links = append(b.Links, Link{Name: "Torso"}) }},
		{"unknown parent", func(b *Body) { b.Joints[0].Parent = "Head" }},
		{"unknown child", func(b *Body) { b.Joints[0].Child = "Tail" }},
		{"two parents", func(b *Body) { b.Joints[1].Child = "FrontLeg" }},
		{"no links", func(b *Body) { b.Links = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := DefaultBody()
			tt.mutate(body)
			require.Error(t, body.Validate())
		})
	}
}

func TestWorldAndBodyFilesRoundTrip(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, WriteWorld(WorldFile(dir), DefaultWorld(-9.8)))
	require.NoError(t, WriteBody(BodyFile(dir), DefaultBody()))

	world, err := ReadWorld(WorldFile(dir))
	require.NoError(t, err)
	assert.Equal(t, DefaultWorld(-9.8), world)

	body, err := ReadBody(BodyFile(dir))
	require.NoError(t, err)
	assert.Equal(t, DefaultBody(), body)
}

func TestBrainFileBuildsGraph(t *testing.T) {
	dir := t.TempDir()
	path := BrainFile(dir, 3)
	assert.Equal(t, filepath.Join(dir, "brain3.yaml"), path)

	require.NoError(t, WriteBrain(path, testBrain()))
	brain, err := ReadBrain(path)
	require.NoError(t, err)
	assert.Equal(t, testBrain(), brain)

	require.NoError(t, brain.Validate(DefaultBody()))

	g, err := brain.Graph("tanh", "")
	require.NoError(t, err)
	require.Len(t, g.Motors(), 1)
	assert.Equal(t, nn.Motor, g.Motors()[0].Kind)
}

func TestBrainValidateAgainstBody(t *testing.T) {
	brain := testBrain()
	brain.Neurons[0].Link = "Tail"
	require.Error(t, brain.Validate(DefaultBody()))

	brain = testBrain()
	brain.Neurons[2].Joint = "Neck"
	require.Error(t, brain.Validate(DefaultBody()))
}

func TestBrainGraphRejectsUnknownActivation(t *testing.T) {
	_, err := testBrain().Graph("softmax", "")
	require.Error(t, err)
}
