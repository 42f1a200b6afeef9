// Package planar is a small deterministic stand-in for a rigid-body engine.
// Links are axis-aligned boxes and every joint is a revolute hinge about the
// y axis attached directly to the root link. A leg whose lower face rests on
// the ground while its joint swings pushes the root the opposite way, which is
// enough for controllers to produce forward or backward motion.
package planar

import (
	"errors"
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/baldhumanity/evo-robotics/scene"
	"github.com/baldhumanity/evo-robotics/sim"
)

// Joint dynamics constants.
const (
	TimeStep   = 1.0 / 240.0
	Stiffness  = 40.0
	Damping    = 4.0
	AngleLimit = math.Pi / 2
	contactEps = 1e-9
)

// Engine loads scenes into fresh ECS worlds.
type Engine struct{}

// New returns a planar engine.
func New() *Engine { return &Engine{} }

var _ sim.Engine = (*Engine)(nil)

type linkState struct {
	Name    string
	Pos     scene.Vec3
	Size    scene.Vec3
	Angle   float64 // rotation about y, mirrored from the driving joint
	Root    bool
	Contact bool
}

type jointState struct {
	Name     string
	Child    ecs.Entity
	Anchor   scene.Vec3 // pivot relative to the root center
	Offset   scene.Vec3 // child center relative to the pivot at angle zero
	Angle    float64
	Velocity float64
	Target   float64
	MaxForce float64
}

// Instance is one loaded scene.
type Instance struct {
	world   *ecs.World
	links   *ecs.Map1[linkState]
	joints  *ecs.Map1[jointState]
	filter  *ecs.Filter1[jointState]
	root    ecs.Entity
	byLink  map[string]ecs.Entity
	byJoint map[string]ecs.Entity

	gravity   float64
	vz        float64
	obstacles []scene.Cube
}

// Load builds an instance from a world and a body.
func (e *Engine) Load(world *scene.World, body *scene.Body) (sim.Instance, error) {
	if err := body.Validate(); err != nil {
		return nil, err
	}
	rootLink, err := body.Root()
	if err != nil {
		return nil, err
	}

	w := ecs.NewWorld()
	inst := &Instance{
		world:     w,
		links:     ecs.NewMap1[linkState](w),
		joints:    ecs.NewMap1[jointState](w),
		filter:    ecs.NewFilter1[jointState](w),
		byLink:    make(map[string]ecs.Entity, len(body.Links)),
		byJoint:   make(map[string]ecs.Entity, len(body.Joints)),
		gravity:   world.Gravity,
		obstacles: append([]scene.Cube(nil), world.Cubes...),
	}

	root := linkState{Name: rootLink.Name, Pos: rootLink.Pos, Size: rootLink.Size, Root: true}
	inst.root = inst.links.NewEntity(&root)
	inst.byLink[root.Name] = inst.root

	for _, j := range body.Joints {
		if j.Parent != rootLink.Name {
			return nil, fmt.Errorf("joint %q: planar engine only supports joints on the root link", j.Name)
		}
		if j.Type != "" && j.Type != "revolute" {
			return nil, fmt.Errorf("joint %q: unsupported type %q", j.Name, j.Type)
		}
		child, _ := body.Link(j.Child)
		ls := linkState{
			Name: child.Name,
			Pos:  add(j.Position, child.Pos),
			Size: child.Size,
		}
		ce := inst.links.NewEntity(&ls)
		inst.byLink[child.Name] = ce

		js := jointState{
			Name:   j.Name,
			Child:  ce,
			Anchor: sub(j.Position, rootLink.Pos),
			Offset: child.Pos,
		}
		inst.byJoint[j.Name] = inst.joints.NewEntity(&js)
	}
	inst.updateContacts()
	return inst, nil
}

// Step advances the scene by TimeStep.
func (in *Instance) Step() error {
	root := in.links.Get(in.root)

	var push float64
	var planted int
	query := in.filter.Query()
	for query.Next() {
		j := query.Get()
		child := in.links.Get(j.Child)
		wasDown := child.Contact
		before := child.Pos[0] - root.Pos[0]

		torque := Stiffness*(j.Target-j.Angle) - Damping*j.Velocity
		if j.MaxForce > 0 {
			torque = math.Max(-j.MaxForce, math.Min(torque, j.MaxForce))
		}
		j.Velocity += torque * TimeStep
		j.Angle += j.Velocity * TimeStep
		if math.Abs(j.Angle) > AngleLimit {
			j.Angle = math.Copysign(AngleLimit, j.Angle)
			j.Velocity = 0
		}

		child.Angle = j.Angle
		child.Pos = add(add(root.Pos, j.Anchor), rotateY(j.Offset, j.Angle))
		if wasDown && bottom(child) <= contactEps {
			push += (child.Pos[0] - root.Pos[0]) - before
			planted++
		}
	}
	if planted > 0 {
		in.translate(scene.Vec3{-push / float64(planted), 0, 0})
	}

	in.vz += in.gravity * TimeStep
	in.translate(scene.Vec3{0, 0, in.vz * TimeStep})
	if low := in.lowest(); low < 0 {
		in.translate(scene.Vec3{0, 0, -low})
		in.vz = 0
	}
	in.updateContacts()
	return nil
}

// LinkPosition reports the center of the named link.
func (in *Instance) LinkPosition(link string) (scene.Vec3, error) {
	e, ok := in.byLink[link]
	if !ok {
		return scene.Vec3{}, fmt.Errorf("unknown link %q", link)
	}
	return in.links.Get(e).Pos, nil
}

// TouchSensorValue is 1 when the link touches the ground or an obstacle, -1
// otherwise. Unknown links read -1.
func (in *Instance) TouchSensorValue(link string) float64 {
	e, ok := in.byLink[link]
	if !ok || !in.links.Get(e).Contact {
		return -1
	}
	return 1
}

// ActuateJoint sets the joint's target angle and force limit for the next steps.
func (in *Instance) ActuateJoint(joint string, targetAngle, maxForce float64) error {
	e, ok := in.byJoint[joint]
	if !ok {
		return fmt.Errorf("unknown joint %q", joint)
	}
	if math.IsNaN(targetAngle) {
		return errors.New("target angle is NaN")
	}
	j := in.joints.Get(e)
	j.Target = targetAngle
	j.MaxForce = maxForce
	return nil
}

// Close releases the instance.
func (in *Instance) Close() error {
	in.byLink = nil
	in.byJoint = nil
	return nil
}

// Angle reports a joint's current angle.
func (in *Instance) Angle(joint string) (float64, bool) {
	e, ok := in.byJoint[joint]
	if !ok {
		return 0, false
	}
	return in.joints.Get(e).Angle, true
}

func (in *Instance) translate(d scene.Vec3) {
	for _, e := range in.byLink {
		l := in.links.Get(e)
		l.Pos = add(l.Pos, d)
	}
}

// lowest returns the minimum z of any link's lower face.
func (in *Instance) lowest() float64 {
	low := math.Inf(1)
	for _, e := range in.byLink {
		low = math.Min(low, bottom(in.links.Get(e)))
	}
	return low
}

func (in *Instance) updateContacts() {
	for _, e := range in.byLink {
		l := in.links.Get(e)
		l.Contact = bottom(l) <= contactEps
		for _, c := range in.obstacles {
			if l.Contact {
				break
			}
			l.Contact = overlaps(l, c)
		}
	}
}

// halfExtents of a box rotated by angle about y.
func halfExtents(size scene.Vec3, angle float64) scene.Vec3 {
	s, c := math.Abs(math.Sin(angle)), math.Abs(math.Cos(angle))
	return scene.Vec3{
		(size[0]*c + size[2]*s) / 2,
		size[1] / 2,
		(size[0]*s + size[2]*c) / 2,
	}
}

func bottom(l *linkState) float64 {
	return l.Pos[2] - halfExtents(l.Size, l.Angle)[2]
}

func overlaps(l *linkState, c scene.Cube) bool {
	h := halfExtents(l.Size, l.Angle)
	for i := 0; i < 3; i++ {
		if math.Abs(l.Pos[i]-c.Pos[i]) > h[i]+c.Size[i]/2+contactEps {
			return false
		}
	}
	return true
}

func rotateY(v scene.Vec3, angle float64) scene.Vec3 {
	s, c := math.Sin(angle), math.Cos(angle)
	return scene.Vec3{v[0]*c + v[2]*s, v[1], -v[0]*s + v[2]*c}
}

func add(a, b scene.Vec3) scene.Vec3 { return scene.Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func sub(a, b scene.Vec3) scene.Vec3 { return scene.Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
