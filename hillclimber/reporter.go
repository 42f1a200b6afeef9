package hillclimber

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"
)

// Reporter observes a search. Errors returned by a reporter halt the run.
type Reporter interface {
	ReportGeneration(r GenerationResult) error
	ReportBest(best *Solution) error
}

// GenerationStats are summary statistics over the parents' fitness, ignoring
// failed evaluations.
type GenerationStats struct {
	Min, Max, Mean, StdDev, Median float64
	Failed                         int
}

// Stats computes fitness statistics for the parents after selection.
func (r *GenerationResult) Stats() GenerationStats {
	var fit []float64
	var st GenerationStats
	for _, f := range r.Fitnesses() {
		if math.IsInf(f, 1) {
			st.Failed++
			continue
		}
		fit = append(fit, f)
	}
	if len(fit) == 0 {
		st.Min, st.Max, st.Mean, st.Median = math.Inf(1), math.Inf(1), math.Inf(1), math.Inf(1)
		return st
	}
	sort.Float64s(fit)
	st.Min, st.Max = fit[0], fit[len(fit)-1]
	st.Mean, st.StdDev = stat.MeanStdDev(fit, nil)
	if len(fit) == 1 {
		st.StdDev = 0
	}
	st.Median = stat.Quantile(0.5, stat.Empirical, fit, nil)
	return st
}

// LogReporter writes a summary line per generation to a structured logger.
type LogReporter struct {
	Logger      *slog.Logger
	evaluations int64
}

// NewLogReporter returns a reporter logging to l, or slog.Default if l is nil.
func NewLogReporter(l *slog.Logger) *LogReporter {
	if l == nil {
		l = slog.Default()
	}
	return &LogReporter{Logger: l}
}

func (lr *LogReporter) ReportGeneration(r GenerationResult) error {
	lr.evaluations += int64(len(r.Slots))
	st := r.Stats()
	lr.Logger.Info("generation summary",
		"generation", r.Generation,
		"accepted", fmt.Sprintf("%d/%d", r.Accepted(), len(r.Slots)),
		"min", st.Min,
		"mean", st.Mean,
		"stdev", st.StdDev,
		"median", st.Median,
		"failed", st.Failed,
		"child_evaluations", humanize.Comma(lr.evaluations),
		"elapsed", r.Elapsed.String())
	return nil
}

func (lr *LogReporter) ReportBest(best *Solution) error {
	lr.Logger.Info("best solution", "id", best.ID, "fitness", best.Fitness, "weights", best.Weights.RawMatrix().Data)
	return nil
}

// GenerationRow is one slot's selection outcome as written by CSVReporter.
type GenerationRow struct {
	Generation    int     `csv:"generation"`
	Slot          int     `csv:"slot"`
	ParentID      int     `csv:"parent_id"`
	ParentFitness float64 `csv:"parent_fitness"`
	ChildID       int     `csv:"child_id"`
	ChildFitness  float64 `csv:"child_fitness"`
	Accepted      bool    `csv:"accepted"`
}

// CSVReporter appends one row per slot per generation to w.
type CSVReporter struct {
	mu     sync.Mutex
	w      io.Writer
	header bool
}

// NewCSVReporter writes rows to w. The header is emitted with the first generation.
func NewCSVReporter(w io.Writer) *CSVReporter {
	return &CSVReporter{w: w}
}

func (cr *CSVReporter) ReportGeneration(r GenerationResult) error {
	rows := make([]*GenerationRow, 0, len(r.Slots))
	for _, s := range r.Slots {
		rows = append(rows, &GenerationRow{
			Generation:    r.Generation,
			Slot:          s.Slot,
			ParentID:      s.ParentID,
			ParentFitness: s.ParentFitness,
			ChildID:       s.ChildID,
			ChildFitness:  s.ChildFitness,
			Accepted:      s.Accepted,
		})
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()
	if !cr.header {
		cr.header = true
		return gocsv.Marshal(rows, cr.w)
	}
	return gocsv.MarshalWithoutHeaders(rows, cr.w)
}

func (cr *CSVReporter) ReportBest(*Solution) error { return nil }
