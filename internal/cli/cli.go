// Package cli parses the scnnexp command line.
package cli

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/YuminosukeSato/scnnexp/grid"
	"github.com/YuminosukeSato/scnnexp/pkg/log"
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Config is the parsed command line.
type Config struct {
	// Point is set when a single experiment was given as arguments.
	Point *grid.Point
	// GridPath is an HCL grid file; empty means the default grid.
	GridPath string

	DataDir        string
	ResultsDir     string
	SummariesDir   string
	CheckpointsDir string
	LogLevel       string
	Seed           int64
	StatLayer      bool
}

// Parse processes command-line arguments. It returns the Config, whether
// the program should exit cleanly (help was requested), or an *ExitError.
func Parse(args []string, output io.Writer) (*Config, bool, error) {
	flagSet := flag.NewFlagSet("scnnexp", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
scnnexp - spherical CNN experiments on noisy HEALPix maps.

Usage:
  scnnexp [options]                          run the default grid (or -grid)
  scnnexp [options] SIGMA ORDER SIGMA_NOISE  run a single experiment

Arguments:
  SIGMA        noise parameter of the training simulations (integer)
  ORDER        HEALPix order of the input patches: 1, 2 or 4
  SIGMA_NOISE  noise level added at test time (float)

Options:
`)
		flagSet.PrintDefaults()
	}

	gridFlag := flagSet.String("grid", "", "Path to an HCL grid file. Defaults to the built-in grid.")
	dataFlag := flagSet.String("data-dir", "data", "Directory holding training/ and testing/ archives.")
	resultsFlag := flagSet.String("results-dir", filepath.Join("results", "scnn"), "Directory of the result archives.")
	summariesFlag := flagSet.String("summaries-dir", "summaries", "Directory of training summaries.")
	checkpointsFlag := flagSet.String("checkpoints-dir", "checkpoints", "Directory of model checkpoints.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	seedFlag := flagSet.Int64("seed", 0, "Seed for data splitting, shuffling and noise.")
	statFlag := flagSet.Bool("stat-layer", false, "Add a mean/variance statistics layer to the model.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if _, err := log.ParseLevel(*logLevelFlag); err != nil {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	cfg := &Config{
		GridPath:       *gridFlag,
		DataDir:        *dataFlag,
		ResultsDir:     *resultsFlag,
		SummariesDir:   *summariesFlag,
		CheckpointsDir: *checkpointsFlag,
		LogLevel:       *logLevelFlag,
		Seed:           *seedFlag,
		StatLayer:      *statFlag,
	}

	switch flagSet.NArg() {
	case 0:
	case 3:
		if cfg.GridPath != "" {
			return nil, false, &ExitError{Code: 2, Message: "-grid cannot be combined with SIGMA ORDER SIGMA_NOISE"}
		}
		p, err := parsePoint(flagSet.Args())
		if err != nil {
			return nil, false, err
		}
		cfg.Point = p
	default:
		flagSet.Usage()
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected 0 or 3 arguments, got %d", flagSet.NArg())}
	}
	return cfg, false, nil
}

func parsePoint(args []string) (*grid.Point, error) {
	sigma, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, &ExitError{Code: 2, Message: fmt.Sprintf("invalid SIGMA %q: must be an integer", args[0])}
	}
	order, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, &ExitError{Code: 2, Message: fmt.Sprintf("invalid ORDER %q: must be an integer", args[1])}
	}
	noise, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: fmt.Sprintf("invalid SIGMA_NOISE %q: must be a number", args[2])}
	}
	return &grid.Point{Sigma: sigma, Order: order, SigmaNoise: noise}, nil
}
