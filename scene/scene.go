// Package scene holds the world, body and brain descriptions handed to the
// simulator, and their YAML encodings on disk.
package scene

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/baldhumanity/evo-robotics/internal/atomicfile"
)

// Vec3 is an (x, y, z) triple.
type Vec3 [3]float64

// Cube is a static box placed in the world.
type Cube struct {
	Name string `yaml:"name"`
	Pos  Vec3   `yaml:"pos,flow"`
	Size Vec3   `yaml:"size,flow"`
}

// World describes everything in the scene except the robot.
type World struct {
	Gravity float64 `yaml:"gravity"`
	Plane   bool    `yaml:"plane"`
	Cubes   []Cube  `yaml:"cubes"`
}

// Link is a rigid cube of the robot. The root link's Pos is absolute; every
// other link's Pos is relative to the joint that attaches it.
type Link struct {
	Name string `yaml:"name"`
	Pos  Vec3   `yaml:"pos,flow"`
	Size Vec3   `yaml:"size,flow"`
}

// Joint connects a parent link to a child link.
type Joint struct {
	Name     string `yaml:"name"`
	Parent   string `yaml:"parent"`
	Child    string `yaml:"child"`
	Type     string `yaml:"type"`
	Position Vec3   `yaml:"position,flow"`
}

// Body is an articulated robot made of links and joints.
type Body struct {
	Name   string  `yaml:"name"`
	Links  []Link  `yaml:"links"`
	Joints []Joint `yaml:"joints"`
}

// DefaultWorld is a ground plane with a single unit box near the origin.
func DefaultWorld(gravity float64) *World {
	return &World{
		Gravity: gravity,
		Plane:   true,
		Cubes: []Cube{
			{Name: "Box", Pos: Vec3{0, 0, 0.5}, Size: Vec3{1, 1, 1}},
		},
	}
}

// DefaultBody is the three-link walker: a torso with a front and a back leg,
// each on a revolute joint along the torso's lower edge.
func DefaultBody() *Body {
	const x, y, z = 1.5, 1.5, 1.5
	unit := Vec3{1, 1, 1}
	return &Body{
		Name: "walker",
		Links: []Link{
			{Name: "Torso", Pos: Vec3{x, y, z}, Size: unit},
			{Name: "FrontLeg", Pos: Vec3{-0.5, 0, -0.5}, Size: unit},
			{Name: "BackLeg", Pos: Vec3{0.5, 0, -0.5}, Size: unit},
		},
		Joints: []Joint{
			{Name: "Torso_FrontLeg", Parent: "Torso", Child: "FrontLeg", Type: "revolute", Position: Vec3{x - 0.5, y, z - 0.5}},
			{Name: "Torso_BackLeg", Parent: "Torso", Child: "BackLeg", Type: "revolute", Position: Vec3{x + 0.5, y, z - 0.5}},
		},
	}
}

// Link returns the named link.
func (b *Body) Link(name string) (Link, bool) {
	for _, l := range b.Links {
		if l.Name == name {
			return l, true
		}
	}
	return Link{}, false
}

// Joint returns the named joint.
func (b *Body) Joint(name string) (Joint, bool) {
	for _, j := range b.Joints {
		if j.Name == name {
			return j, true
		}
	}
	return Joint{}, false
}

// Root returns the link that is no joint's child.
func (b *Body) Root() (Link, error) {
	children := make(map[string]bool, len(b.Joints))
	for _, j := range b.Joints {
		children[j.Child] = true
	}
	for _, l := range b.Links {
		if !children[l.Name] {
			return l, nil
		}
	}
	return Link{}, errors.New("body has no root link")
}

// Validate checks names are unique, joints reference existing links, every
// child has exactly one parent joint and there is exactly one root.
func (b *Body) Validate() error {
	if len(b.Links) == 0 {
		return errors.New("body has no links")
	}
	links := make(map[string]bool, len(b.Links))
	for _, l := range b.Links {
		if l.Name == "" {
			return errors.New("body link without a name")
		}
		if links[l.Name] {
			return fmt.Errorf("duplicate link %q", l.Name)
		}
		links[l.Name] = true
	}
	joints := make(map[string]bool, len(b.Joints))
	parentOf := make(map[string]string, len(b.Joints))
	for _, j := range b.Joints {
		if joints[j.Name] {
			return fmt.Errorf("duplicate joint %q", j.Name)
		}
		joints[j.Name] = true
		if !links[j.Parent] {
			return fmt.Errorf("joint %q: unknown parent link %q", j.Name, j.Parent)
		}
		if !links[j.Child] {
			return fmt.Errorf("joint %q: unknown child link %q", j.Name, j.Child)
		}
		if prev, ok := parentOf[j.Child]; ok {
			return fmt.Errorf("link %q attached by both %q and %q", j.Child, prev, j.Name)
		}
		parentOf[j.Child] = j.Name
	}
	if roots := len(b.Links) - len(parentOf); roots != 1 {
		return fmt.Errorf("body must have exactly one root link, found %d", roots)
	}
	return nil
}

// MarshalWorld encodes a world description.
func MarshalWorld(w *World) ([]byte, error) {
	return yaml.Marshal(w)
}

// MarshalBody encodes a body description.
func MarshalBody(b *Body) ([]byte, error) {
	return yaml.Marshal(b)
}

// WriteWorld stores a world description at path.
func WriteWorld(path string, w *World) error {
	data, err := MarshalWorld(w)
	if err != nil {
		return fmt.Errorf("encoding world: %w", err)
	}
	return atomicfile.Write(path, data, 0o644)
}

// WriteBody validates and stores a body description at path.
func WriteBody(path string, b *Body) error {
	if err := b.Validate(); err != nil {
		return err
	}
	data, err := MarshalBody(b)
	if err != nil {
		return fmt.Errorf("encoding body: %w", err)
	}
	return atomicfile.Write(path, data, 0o644)
}

// ReadWorld loads a world description.
func ReadWorld(path string) (*World, error) {
	w := &World{}
	if err := readYAML(path, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ReadBody loads and validates a body description.
func ReadBody(path string) (*Body, error) {
	b := &Body{}
	if err := readYAML(path, b); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("body %s: %w", path, err)
	}
	return b, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
