// Package check parses consistency-check command flags and runs the check
// over one scenario file.
package check

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/louisbranch/storyweave/internal/consistency"
	"github.com/louisbranch/storyweave/internal/platform/otel"
	"github.com/louisbranch/storyweave/internal/storage/sqlite"
	"github.com/louisbranch/storyweave/internal/story/flow"
	"github.com/louisbranch/storyweave/internal/story/yamlcodec"
	"github.com/louisbranch/storyweave/internal/telemetry"
)

// ErrFindings signals that the check completed and found error-severity
// findings. The command maps it to a non-zero exit.
var ErrFindings = errors.New("scenario has consistency errors")

// Config holds check command configuration.
type Config struct {
	Scenario string `env:"STORYWEAVE_SCENARIO_FILE"`
	Storage  string `env:"STORYWEAVE_STORAGE_PATH"`
	MaxPaths int    `env:"STORYWEAVE_MAX_PATHS" envDefault:"100"`
	Explore  bool   `env:"STORYWEAVE_EXPLORE"`
	Strict   bool   `env:"STORYWEAVE_STRICT"   envDefault:"true"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to scenario YAML file")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "path to SQLite database (optional, persists reports)")
	fs.IntVar(&cfg.MaxPaths, "max-paths", cfg.MaxPaths, "maximum playthrough paths to enumerate")
	fs.BoolVar(&cfg.Explore, "explore", cfg.Explore, "also explore the merged state space")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "exit non-zero when error findings exist")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the check command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Scenario == "" {
		return errors.New("scenario path is required")
	}

	shutdown, err := otel.Setup(ctx, "check")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	scenario, err := yamlcodec.DecodeFile(cfg.Scenario)
	if err != nil {
		return err
	}

	checkerCfg := consistency.Config{}
	if cfg.Storage != "" {
		store, err := sqlite.Open(cfg.Storage)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				fmt.Fprintf(errOut, "close storage: %v\n", err)
			}
		}()
		checkerCfg.Reports = store
		checkerCfg.Telemetry = telemetry.NewEmitter(store)
	}
	checker := consistency.NewChecker(checkerCfg)

	report, err := checker.CheckScenario(ctx, scenario)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "scenario %s: %d finding(s)\n", scenario.ID, len(report.Findings))
	for _, finding := range report.Findings {
		fmt.Fprintf(out, "  [%s] %s: %s\n", finding.Severity, finding.Kind, finding.Message)
	}

	start, _ := flow.FindStartScene(scenario)
	paths := flow.EnumeratePaths(scenario, cfg.MaxPaths)
	fmt.Fprintf(out, "start scene %s, %d ending(s), %d path(s)\n",
		start, len(flow.FindEndingScenes(scenario)), len(paths))

	if cfg.Explore {
		exploration, err := checker.ExploreScenario(ctx, scenario, consistency.ExploreOptions{})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "state space: %d merged state(s), %d transition(s)\n",
			exploration.Result.Graph.Len(), len(exploration.Result.Graph.Edges()))
	}

	if cfg.Strict && report.HasErrors() {
		return ErrFindings
	}
	return nil
}
