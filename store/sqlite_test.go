package store

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/evo-robotics/hillclimber"
)

func newRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	cfg := hillclimber.DefaultConfig()
	cfg.HillClimber.Seed = 9
	r, err := NewSQLiteRecorder(context.Background(), filepath.Join(t.TempDir(), "runs.db"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecorderStoresSelections(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()

	require.NoError(t, r.ReportGeneration(hillclimber.GenerationResult{
		Generation: 1,
		Slots: []hillclimber.SlotResult{
			{Slot: 0, ParentID: 0, ParentFitness: 3.1, ChildID: 4, ChildFitness: 2.9, Accepted: true},
			{Slot: 1, ParentID: 1, ParentFitness: 2.8, ChildID: 5, ChildFitness: 3.0},
			{Slot: 2, ParentID: 2, ParentFitness: 4.0, ChildID: 6, ChildFitness: math.Inf(1)},
		},
	}))
	require.NoError(t, r.ReportGeneration(hillclimber.GenerationResult{
		Generation: 2,
		Slots: []hillclimber.SlotResult{
			{Slot: 0, ParentID: 4, ParentFitness: 2.9, ChildID: 7, ChildFitness: 3.5},
			{Slot: 1, ParentID: 1, ParentFitness: 2.8, ChildID: 8, ChildFitness: 1.0, Accepted: true},
			{Slot: 2, ParentID: 2, ParentFitness: 4.0, ChildID: 9, ChildFitness: 3.9, Accepted: true},
		},
	}))

	gens, err := r.Generations(ctx, r.RunID())
	require.NoError(t, err)
	require.Len(t, gens, 2)
	assert.Equal(t, 1, gens[0].Accepted)
	assert.Equal(t, 3, gens[0].Slots)
	require.NotNil(t, gens[0].Best)
	assert.Equal(t, 2.8, *gens[0].Best)
	assert.Equal(t, 2, gens[1].Accepted)
	assert.Equal(t, 1.0, *gens[1].Best)
}

func TestRecorderStoresBest(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()

	run, err := r.Run(ctx, r.RunID())
	require.NoError(t, err)
	assert.Equal(t, 10, run.PopulationSize)
	assert.Equal(t, int64(9), run.Seed)
	assert.Nil(t, run.FinishedAt)
	assert.Nil(t, run.BestID)

	best := hillclimber.NewSolution(17, 3, 2, rand.New(rand.NewSource(1)), -1, 1)
	best.Fitness = -2.5
	require.NoError(t, r.ReportBest(best))

	run, err = r.Run(ctx, r.RunID())
	require.NoError(t, err)
	require.NotNil(t, run.BestID)
	assert.Equal(t, 17, *run.BestID)
	assert.Equal(t, -2.5, *run.BestFitness)
	assert.Equal(t, best.Weights.RawMatrix().Data, run.BestWeights)
	assert.NotNil(t, run.FinishedAt)
}

func TestRecorderRunsAreDistinct(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	cfg := hillclimber.DefaultConfig()
	a, err := NewSQLiteRecorder(context.Background(), path, cfg)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSQLiteRecorder(context.Background(), path, cfg)
	require.NoError(t, err)
	defer b.Close()
	assert.NotEqual(t, a.RunID(), b.RunID())
}
