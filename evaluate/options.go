package evaluate

import (
	"github.com/baldhumanity/evo-robotics/hillclimber"
	"github.com/baldhumanity/evo-robotics/sim"
)

// SimOptions derives trajectory options for a mode from the configuration.
func SimOptions(cfg *hillclimber.Config, mode hillclimber.Mode) sim.Options {
	opts := sim.Options{
		Steps:       cfg.Simulation.Steps,
		MaxForce:    cfg.Simulation.MaxForce,
		FitnessLink: cfg.Simulation.FitnessLink,
		Activation:  cfg.Brain.Activation,
		Aggregation: cfg.Brain.Aggregation,
	}
	if mode == hillclimber.ModeGUI {
		opts.TickDelay = cfg.Simulation.GUITickDelay
	}
	return opts
}
