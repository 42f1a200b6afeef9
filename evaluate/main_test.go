package evaluate

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/baldhumanity/evo-robotics/hillclimber"
	"github.com/baldhumanity/evo-robotics/sim/planar"
)

// workerEnv makes the test binary act as a simulate worker when it is
// launched by Process.
const workerEnv = "EVALUATE_TEST_WORKER"

func TestMain(m *testing.M) {
	if behavior := os.Getenv(workerEnv); behavior != "" {
		os.Exit(runTestWorker(behavior, os.Args[1:]))
	}
	os.Exit(m.Run())
}

func runTestWorker(behavior string, args []string) int {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	mode := fs.String("mode", "direct", "")
	id := fs.Int("id", -1, "")
	configPath := fs.String("config", "", "")
	workDir := fs.String("work-dir", "", "")
	// args[0] is the "simulate" subcommand.
	if len(args) > 0 && args[0] == "simulate" {
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	switch behavior {
	case "hang":
		time.Sleep(time.Minute)
		return 1
	case "fail":
		return 3
	case "garbage":
		if err := os.WriteFile(ResultPath(*workDir, *id), []byte("NaN-ish"), 0o644); err != nil {
			return 1
		}
		return 0
	}

	cfg, err := hillclimber.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	m, err := hillclimber.ParseMode(*mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	_, err = RunWorker(context.Background(), WorkerOptions{
		Config:  cfg,
		WorkDir: *workDir,
		ID:      *id,
		Mode:    m,
		Engine:  planar.New(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
