// Package evaluate connects the hill climber to the simulator. Process runs
// each candidate in its own worker process and collects the fitness through
// files in a shared work directory; Local runs candidates on an in-process
// worker pool.
package evaluate

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/baldhumanity/evo-robotics/internal/atomicfile"
)

// ErrMalformedFitness is returned when a result artifact does not hold a
// single finite decimal number.
var ErrMalformedFitness = errors.New("malformed fitness")

// ResultPath is the result artifact of candidate id inside dir.
func ResultPath(dir string, id int) string {
	return filepath.Join(dir, fmt.Sprintf("fitness%d.txt", id))
}

// WriteResult atomically stores a fitness value for candidate id.
func WriteResult(dir string, id int, fitness float64) error {
	if math.IsNaN(fitness) || math.IsInf(fitness, 0) {
		return fmt.Errorf("%w: solution %d has fitness %v", ErrMalformedFitness, id, fitness)
	}
	data := []byte(strconv.FormatFloat(fitness, 'g', -1, 64))
	return atomicfile.Write(ResultPath(dir, id), data, 0o644)
}

// ReadResult parses a result artifact.
func ReadResult(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(string(data))
	if !isDecimal(text) {
		return 0, fmt.Errorf("%w: %q in %s", ErrMalformedFitness, text, path)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q in %s", ErrMalformedFitness, text, path)
	}
	return f, nil
}

// isDecimal rejects the forms ParseFloat accepts beyond plain decimal
// notation: NaN, Inf, hex floats and digit separators.
func isDecimal(text string) bool {
	if text == "" {
		return false
	}
	return !strings.ContainsFunc(text, func(r rune) bool {
		return (r < '0' || r > '9') && !strings.ContainsRune("+-.eE", r)
	})
}

// Cleanup removes result artifacts, temporary files and brain files left in
// dir by earlier runs. A missing dir is not an error.
func Cleanup(dir string) error {
	var errs []error
	for _, pattern := range []string{"fitness*.txt", atomicfile.TempPrefix + "*", "brain*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
