package hillclimber

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// savedSolution is the on-disk form of a Solution.
type savedSolution struct {
	ID      int
	Rows    int
	Cols    int
	Weights []float64
	Fitness float64
}

// PopulationSaveData holds the parts of a ParallelHillClimber needed to
// resume a search. The Config is not saved; it is reloaded from its file.
// Seed and Draws locate the random stream; Seeded is false when the climber
// ran on a caller supplied source, which cannot be restored.
type PopulationSaveData struct {
	Parents    []savedSolution
	Generation int
	NextID     int
	Evaluated  bool
	Seeded     bool
	Seed       int64
	Draws      uint64
}

// SaveCheckpoint writes the parents, generation counter and id allocator to
// a gzip compressed gob file.
func (p *ParallelHillClimber) SaveCheckpoint(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file '%s': %w", filePath, err)
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)
	saveData := PopulationSaveData{
		Generation: p.Generation,
		NextID:     p.nextID,
		Evaluated:  p.evaluated,
	}
	if p.source != nil {
		saveData.Seeded = true
		saveData.Seed = p.source.seed
		saveData.Draws = p.source.draws
	}
	for _, s := range p.Parents {
		r, c := s.Dims()
		saveData.Parents = append(saveData.Parents, savedSolution{
			ID:      s.ID,
			Rows:    r,
			Cols:    c,
			Weights: mat.DenseCopyOf(s.Weights).RawMatrix().Data,
			Fitness: s.Fitness,
		})
	}
	if err := gob.NewEncoder(gzWriter).Encode(saveData); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode population data: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush checkpoint: %w", err)
	}

	p.logger.Info("checkpoint saved", "path", filePath, "generation", p.Generation)
	return file.Close()
}

// LoadCheckpoint restores a search from a checkpoint. The checkpoint's
// population size and weight matrices must match cfg. A search that ran on
// the seeded source continues at the same point of its random stream, so a
// resumed run draws the same mutations as an uninterrupted one.
func LoadCheckpoint(checkpointPath string, cfg *Config, evaluator Evaluator, opts ...Option) (*ParallelHillClimber, error) {
	file, err := os.Open(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file '%s': %w", checkpointPath, err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for checkpoint: %w", err)
	}
	defer gzReader.Close()

	saveData := PopulationSaveData{}
	if err := gob.NewDecoder(gzReader).Decode(&saveData); err != nil {
		return nil, fmt.Errorf("failed to decode population data from checkpoint: %w", err)
	}
	if len(saveData.Parents) == 0 {
		return nil, fmt.Errorf("checkpoint '%s' has no parents", checkpointPath)
	}

	if len(saveData.Parents) != cfg.HillClimber.PopulationSize {
		return nil, fmt.Errorf("checkpoint '%s' has %d parents, config expects population_size %d",
			checkpointPath, len(saveData.Parents), cfg.HillClimber.PopulationSize)
	}

	p, err := NewParallelHillClimber(cfg, evaluator, opts...)
	if err != nil {
		return nil, err
	}
	sensors, motors := len(cfg.Brain.SensorLinks), len(cfg.Brain.MotorJoints)
	p.Parents = make([]*Solution, 0, len(saveData.Parents))
	for _, s := range saveData.Parents {
		if s.Rows != sensors || s.Cols != motors || len(s.Weights) != s.Rows*s.Cols {
			return nil, fmt.Errorf("checkpoint solution %d is %dx%d, config expects %dx%d", s.ID, s.Rows, s.Cols, sensors, motors)
		}
		p.Parents = append(p.Parents, &Solution{
			ID:      s.ID,
			Weights: mat.NewDense(s.Rows, s.Cols, s.Weights),
			Fitness: s.Fitness,
			lo:      cfg.HillClimber.WeightMinValue,
			hi:      cfg.HillClimber.WeightMaxValue,
		})
	}
	p.Generation = saveData.Generation
	p.nextID = saveData.NextID
	p.evaluated = saveData.Evaluated
	switch {
	case p.source == nil:
		// The caller's source wins.
	case saveData.Seeded:
		p.source.Seed(saveData.Seed)
		p.source.skip(saveData.Draws)
	default:
		p.logger.Warn("checkpoint has no random stream position, mutations restart from the configured seed")
	}

	p.logger.Info("checkpoint loaded", "path", checkpointPath, "generation", p.Generation, "parents", len(p.Parents))
	return p, nil
}
