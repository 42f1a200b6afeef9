package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/baldhumanity/evo-robotics/hillclimber"
)

// SQLiteRecorder is a hillclimber.Reporter that stores a run's history.
type SQLiteRecorder struct {
	mu    sync.Mutex
	db    *sql.DB
	runID string
}

var _ hillclimber.Reporter = (*SQLiteRecorder)(nil)

// Run is a stored search run.
type Run struct {
	ID             string
	PopulationSize int
	Generations    int
	Seed           int64
	StartedAt      time.Time
	FinishedAt     *time.Time
	BestID         *int
	BestFitness    *float64
	BestWeights    []float64
}

// GenerationSummary aggregates the selections of one generation.
type GenerationSummary struct {
	Generation int
	Accepted   int
	Slots      int
	Best       *float64 // lowest parent fitness after selection
}

// Open opens (or creates) the database at path.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// NewSQLiteRecorder opens the database at path and registers a new run
// for cfg under a fresh random id.
func NewSQLiteRecorder(ctx context.Context, path string, cfg *hillclimber.Config) (*SQLiteRecorder, error) {
	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	r := &SQLiteRecorder{db: db, runID: uuid.NewString()}
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, population_size, generations, seed, sensors, motors, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.runID,
		cfg.HillClimber.PopulationSize,
		cfg.HillClimber.NumberOfGenerations,
		cfg.HillClimber.Seed,
		len(cfg.Brain.SensorLinks),
		len(cfg.Brain.MotorJoints),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return r, nil
}

// RunID identifies the run being recorded.
func (r *SQLiteRecorder) RunID() string { return r.runID }

// ReportGeneration stores every slot's selection outcome in one transaction.
func (r *SQLiteRecorder) ReportGeneration(g hillclimber.GenerationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := context.Background()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO selections (run_id, generation, slot, parent_id, parent_fitness, child_id, child_fitness, accepted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range g.Slots {
		if _, err := stmt.ExecContext(ctx, r.runID, g.Generation, s.Slot,
			s.ParentID, nullFitness(s.ParentFitness),
			s.ChildID, nullFitness(s.ChildFitness),
			s.Accepted); err != nil {
			return fmt.Errorf("failed to insert selection for slot %d: %w", s.Slot, err)
		}
	}
	return tx.Commit()
}

// ReportBest stores the final best candidate and marks the run finished.
func (r *SQLiteRecorder) ReportBest(best *hillclimber.Solution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	weights, err := json.Marshal(best.Weights.RawMatrix().Data)
	if err != nil {
		return fmt.Errorf("failed to encode weights: %w", err)
	}
	_, err = r.db.Exec(`
		UPDATE runs SET best_id = ?, best_fitness = ?, best_weights = ?, finished_at = ?
		WHERE id = ?`,
		best.ID, nullFitness(best.Fitness), string(weights),
		time.Now().UTC().Format(time.RFC3339Nano), r.runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// Run loads a stored run.
func (r *SQLiteRecorder) Run(ctx context.Context, id string) (*Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
		bestID   sql.NullInt64
		bestFit  sql.NullFloat64
		weights  sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, population_size, generations, seed, started_at, finished_at, best_id, best_fitness, best_weights
		FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &run.PopulationSize, &run.Generations, &run.Seed, &started, &finished, &bestID, &bestFit, &weights)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("run %s: bad started_at: %w", id, err)
	}
	if finished.Valid {
		t, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return nil, fmt.Errorf("run %s: bad finished_at: %w", id, err)
		}
		run.FinishedAt = &t
	}
	if bestID.Valid {
		v := int(bestID.Int64)
		run.BestID = &v
	}
	if bestFit.Valid {
		run.BestFitness = &bestFit.Float64
	}
	if weights.Valid {
		if err := json.Unmarshal([]byte(weights.String), &run.BestWeights); err != nil {
			return nil, fmt.Errorf("run %s: bad weights: %w", id, err)
		}
	}
	return &run, nil
}

// Generations summarizes every recorded generation of a run in order.
func (r *SQLiteRecorder) Generations(ctx context.Context, id string) ([]GenerationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT generation, SUM(accepted), COUNT(*),
		       MIN(CASE WHEN accepted THEN child_fitness ELSE parent_fitness END)
		FROM selections WHERE run_id = ?
		GROUP BY generation ORDER BY generation`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var out []GenerationSummary
	for rows.Next() {
		var g GenerationSummary
		var best sql.NullFloat64
		if err := rows.Scan(&g.Generation, &g.Accepted, &g.Slots, &best); err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		if best.Valid {
			v := best.Float64
			g.Best = &v
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Close closes the database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

// nullFitness stores failed evaluations as NULL.
func nullFitness(f float64) sql.NullFloat64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}
