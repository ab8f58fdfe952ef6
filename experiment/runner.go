package experiment

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/scnnexp/dataprep"
	"github.com/YuminosukeSato/scnnexp/dataset"
	"github.com/YuminosukeSato/scnnexp/grid"
	"github.com/YuminosukeSato/scnnexp/metrics"
	"github.com/YuminosukeSato/scnnexp/pkg/errors"
	"github.com/YuminosukeSato/scnnexp/pkg/log"
	"github.com/YuminosukeSato/scnnexp/results"
	"github.com/YuminosukeSato/scnnexp/scnn"
)

// Dirs are the output directories of a run.
type Dirs struct {
	Summaries   string
	Checkpoints string
	Results     string
}

// DefaultDirs returns summaries/, checkpoints/ and results/scnn/ relative
// to the working directory.
func DefaultDirs() Dirs {
	return Dirs{
		Summaries:   "summaries",
		Checkpoints: "checkpoints",
		Results:     filepath.Join("results", "scnn"),
	}
}

// Runner runs experiments one after another.
type Runner struct {
	provider   dataprep.Provider
	preprocess dataprep.Preprocessor
	factory    scnn.Factory
	logger     log.Logger
	out        io.Writer
	dirs       Dirs
	seed       int64
	statLayer  bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithPreprocessor replaces dataprep.Preprocess.
func WithPreprocessor(p dataprep.Preprocessor) Option {
	return func(r *Runner) {
		r.preprocess = p
	}
}

// WithLogger sets the structured logger.
func WithLogger(l log.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithOutput sets the writer receiving the human-readable report lines.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.out = w
	}
}

// WithDirs sets the output directories.
func WithDirs(d Dirs) Option {
	return func(r *Runner) {
		r.dirs = d
	}
}

// WithSeed seeds shuffling, splitting and noise injection.
func WithSeed(seed int64) Option {
	return func(r *Runner) {
		r.seed = seed
	}
}

// WithStatLayer enables the statistics layer of the model.
func WithStatLayer(enabled bool) Option {
	return func(r *Runner) {
		r.statLayer = enabled
	}
}

// NewRunner creates a Runner loading data from provider and training models
// built by factory.
func NewRunner(provider dataprep.Provider, factory scnn.Factory, opts ...Option) *Runner {
	r := &Runner{
		provider:   provider,
		preprocess: dataprep.Preprocess,
		factory:    factory,
		logger:     log.GetLogger(),
		out:        os.Stdout,
		dirs:       DefaultDirs(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run runs the experiment p and returns its test error, the fraction of
// misclassified test samples.
//
// An unsupported order fails before any data is loaded. Errors of the data
// provider, preprocessing, the model or the metric are returned as is, and
// panics inside them are returned as *errors.PanicError.
func (r *Runner) Run(ctx context.Context, p grid.Point) (float64, error) {
	order, err := ParseOrder(p.Order)
	if err != nil {
		return 0, err
	}
	name := Name(p)
	logger := r.logger.With(
		log.ExperimentKey, name,
		log.SigmaKey, p.Sigma,
		log.OrderKey, p.Order,
		log.SigmaNoiseKey, p.SigmaNoise,
	)
	start := time.Now()

	type trainingData struct {
		raw dataprep.Raw
		std float64
	}
	train, err := errors.SafeCall("provider.TrainingData", func() (trainingData, error) {
		raw, std, err := r.provider.TrainingData(p.Sigma, p.Order)
		return trainingData{raw: raw, std: std}, err
	})
	if err != nil {
		return 0, errors.Wrapf(err, "%s: training data", name)
	}
	test, err := errors.SafeCall("provider.TestingData", func() (dataprep.Raw, error) {
		return r.provider.TestingData(p.Sigma, p.Order, p.SigmaNoise, train.std)
	})
	if err != nil {
		return 0, errors.Wrapf(err, "%s: testing data", name)
	}
	splits, err := errors.SafeCall("preprocess", func() (dataprep.Splits, error) {
		return r.preprocess(train.raw, test, p.SigmaNoise, r.seed)
	})
	if err != nil {
		return 0, errors.Wrapf(err, "%s: preprocessing", name)
	}
	logger.Debug("Data loaded",
		log.OperationKey, log.OperationLoad,
		log.SamplesKey, len(splits.Train.Labels),
		"std", train.std,
	)

	base, err := dataset.NewLabeled(splits.Train.X, splits.Train.Labels, dataset.WithSeed(r.seed))
	if err != nil {
		return 0, errors.Wrapf(err, "%s: training set", name)
	}
	training := dataset.NewNoisy(base, 0, p.SigmaNoise, len(splits.Train.Labels)/10, r.seed)
	validation, err := dataset.NewLabeled(splits.Validation.X, splits.Validation.Labels, dataset.WithShuffle(false))
	if err != nil {
		return 0, errors.Wrapf(err, "%s: validation set", name)
	}

	params, err := NewParams(order, name, training.N(), r.statLayer)
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(r.out, "#sides: %s\n", formatInts(params.Nsides()))

	r.cleanup(logger, filepath.Join(r.dirs.Summaries, name))
	r.cleanup(logger, filepath.Join(r.dirs.Checkpoints, name))

	model, err := errors.SafeCall("model factory", func() (scnn.Model, error) {
		return r.factory(params)
	})
	if err != nil {
		return 0, errors.Wrapf(err, "%s: model", name)
	}

	cfg := params.Config()
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.NsidesKey, cfg.Nsides,
		log.NumEpochsKey, cfg.NumEpochs,
		log.BatchSizeKey, cfg.BatchSize,
		log.EvalFrequencyKey, cfg.EvalFrequency,
	)
	fit, err := errors.SafeCall("model.Fit", func() (scnn.FitResult, error) {
		return model.Fit(ctx, training, validation)
	})
	if err != nil {
		return 0, errors.Wrapf(err, "%s: fit", name)
	}

	errValidation, err := errors.SafeCall("model_error", func() (float64, error) {
		return metrics.ModelError(model, splits.Validation.X, splits.Validation.Labels)
	})
	if err != nil {
		return 0, errors.Wrapf(err, "%s: validation error", name)
	}
	fmt.Fprintf(r.out, "The validation error is %s%%\n", grid.FormatFloat(errValidation*100))

	errTest, err := errors.SafeCall("model_error", func() (float64, error) {
		return metrics.ModelError(model, splits.Test.X, splits.Test.Labels)
	})
	if err != nil {
		return 0, errors.Wrapf(err, "%s: test error", name)
	}
	fmt.Fprintf(r.out, "The testing error is %s%%\n", grid.FormatFloat(errTest*100))

	logger.Info("Experiment completed",
		log.OperationKey, log.OperationEvaluate,
		log.ErrorRateKey, errTest,
		"validation_error_rate", errValidation,
		"evaluations", len(fit.Accuracy),
		"step_duration", fit.StepDuration,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return errTest, nil
}

// RunAll runs every point in order and appends each test error to the
// results archive of its sigma. It stops at the first error. Cancellation
// of ctx is checked between experiments.
//
// The orders of all points are checked before the first experiment starts:
// if any point is invalid, nothing runs and no archive is touched.
func (r *Runner) RunAll(ctx context.Context, points []grid.Point) error {
	for _, p := range points {
		if _, err := ParseOrder(p.Order); err != nil {
			return errors.Wrapf(err, "experiment %s", p)
		}
	}

	if err := os.MkdirAll(r.dirs.Results, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create results directory %s", r.dirs.Results)
	}
	archive := results.NewArchive(r.dirs.Results)

	for i, p := range points {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "stopped before experiment %d of %d", i+1, len(points))
		}
		fmt.Fprintf(r.out, "Launch experiment for %s\n", p)

		testError, err := r.Run(ctx, p)
		if err != nil {
			r.logger.Error("Experiment failed", err, log.ExperimentKey, Name(p))
			return err
		}

		records, err := archive.Append(p.Sigma, results.Record{
			Order:      p.Order,
			SigmaNoise: p.SigmaNoise,
			TestError:  testError,
		})
		if err != nil {
			return errors.Wrapf(err, "failed to persist result of %s", Name(p))
		}
		r.logger.Info("Result saved",
			log.OperationKey, log.OperationPersist,
			log.PathKey, archive.Path(p.Sigma),
			log.SamplesKey, len(records),
		)
	}
	return nil
}

// cleanup removes stale summaries or checkpoints of an experiment. A
// missing directory is fine; any other failure is reported as a warning.
func (r *Runner) cleanup(logger log.Logger, dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		errors.Warn(errors.NewCleanupWarning(dir, err))
		return
	}
	logger.Debug("Removed stale directory",
		log.OperationKey, log.OperationCleanup,
		log.PathKey, dir,
	)
}
