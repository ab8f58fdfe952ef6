package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/YuminosukeSato/scnnexp/dataprep"
	"github.com/YuminosukeSato/scnnexp/experiment"
	"github.com/YuminosukeSato/scnnexp/grid"
	"github.com/YuminosukeSato/scnnexp/internal/cli"
	"github.com/YuminosukeSato/scnnexp/pkg/log"
	"github.com/YuminosukeSato/scnnexp/scnn"
)

// main is the entrypoint for scnnexp.
func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses args, builds the work list and runs it, writing the report
// lines to outW.
func run(outW io.Writer, args []string) error {
	cfg, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger, err := log.SetupLogger(cfg.LogLevel)
	if err != nil {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}

	points, err := workList(cfg)
	if err != nil {
		return err
	}
	logger.Debug("Work list ready", "experiments", len(points))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	factory := scnn.ReadoutFactory(
		scnn.WithSummaryDir(cfg.SummariesDir),
		scnn.WithCheckpointDir(cfg.CheckpointsDir),
		scnn.WithReadoutLogger(logger),
		scnn.WithReadoutSeed(cfg.Seed),
	)
	runner := experiment.NewRunner(dataprep.NewNPZProvider(cfg.DataDir, cfg.Seed), factory,
		experiment.WithLogger(logger),
		experiment.WithOutput(outW),
		experiment.WithSeed(cfg.Seed),
		experiment.WithStatLayer(cfg.StatLayer),
		experiment.WithDirs(experiment.Dirs{
			Summaries:   cfg.SummariesDir,
			Checkpoints: cfg.CheckpointsDir,
			Results:     cfg.ResultsDir,
		}),
	)
	return runner.RunAll(ctx, points)
}

func workList(cfg *cli.Config) ([]grid.Point, error) {
	switch {
	case cfg.Point != nil:
		return []grid.Point{*cfg.Point}, nil
	case cfg.GridPath != "":
		return grid.Load(cfg.GridPath)
	default:
		return grid.Default(), nil
	}
}
