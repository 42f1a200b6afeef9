// Package evorobotics evolves neural controllers for simulated robots with a
// parallel hill climber.
//
// Every candidate is a dense weight matrix fully connecting the robot's touch
// sensors to its joint motors. Each tick of a trajectory the sensor readings
// are propagated through the network (tanh of the weighted sum) and the
// resulting motor values are sent to the joints as target angles. Fitness is
// the x coordinate of the torso after the last tick; lower is better.
//
// The search keeps one (1+1) lineage per population slot. Each generation
// every parent is copied into a child with a fresh id, one weight of every
// child is redrawn, all children are evaluated concurrently and a child
// replaces its parent only when it is strictly better.
//
// Packages:
//
//	hillclimber     configuration, candidates, the search loop, reporters, checkpoints
//	hillclimber/nn  the sensor/hidden/motor neuron graph
//	evaluate        process and in-process evaluators, result artifacts, worker entry point
//	sim             trajectory runner over a physics engine; sim/planar is a stand-in engine
//	scene           world, body and brain descriptions
//	store           SQLite run history
//
// Basic usage:
//
//	cfg, err := hillclimber.LoadConfig("configs/walker.ini")
//	if err != nil {
//		log.Fatalf("Error loading config: %v", err)
//	}
//
//	ev := evaluate.NewLocal(cfg, planar.New(), nil)
//	defer ev.Close()
//
//	phc, err := hillclimber.NewParallelHillClimber(cfg, ev)
//	if err != nil {
//		log.Fatalf("Error creating hill climber: %v", err)
//	}
//	best, err := phc.Evolve(context.Background())
//	if err != nil {
//		log.Fatalf("Search failed: %v", err)
//	}
//	fmt.Println(best)
package evorobotics
