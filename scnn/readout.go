package scnn

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scnnexp/core/model"
	"github.com/YuminosukeSato/scnnexp/core/parallel"
	"github.com/YuminosukeSato/scnnexp/metrics"
	"github.com/YuminosukeSato/scnnexp/pkg/errors"
	"github.com/YuminosukeSato/scnnexp/pkg/log"
)

const (
	// CheckpointFile is the file name of the gob checkpoint inside checkpoints/{DirName}.
	CheckpointFile = "model.gob"

	// 並列化の閾値（バッチの行数）
	parallelThreshold = 64
)

// Readout is a softmax classifier on the finest-resolution pixels of a
// sample. It follows the training schedule of Params (optimizer, learning
// rate decay, dropout, L2 regularization and evaluation frequency) and is
// used as the in-repo model backend when no spherical CNN is plugged in.
type Readout struct {
	params Params
	state  *model.StateManager

	summaryDir    string
	checkpointDir string
	logger        log.Logger
	seed          int64

	// 学習済みパラメータ: nClasses × (nFeatures+1)、各行の末尾がバイアス
	theta     []float64
	nClasses  int
	nFeatures int
	step      int
}

// ReadoutOption configures a Readout.
type ReadoutOption func(*Readout)

// WithSummaryDir sets the root directory of training summaries.
func WithSummaryDir(dir string) ReadoutOption {
	return func(r *Readout) {
		r.summaryDir = dir
	}
}

// WithCheckpointDir sets the root directory of checkpoints.
func WithCheckpointDir(dir string) ReadoutOption {
	return func(r *Readout) {
		r.checkpointDir = dir
	}
}

// WithReadoutLogger sets the logger used for training progress.
func WithReadoutLogger(l log.Logger) ReadoutOption {
	return func(r *Readout) {
		r.logger = l
	}
}

// WithReadoutSeed sets the seed for weight initialization and dropout.
func WithReadoutSeed(seed int64) ReadoutOption {
	return func(r *Readout) {
		r.seed = seed
	}
}

// NewReadout creates an untrained readout for p.
func NewReadout(p Params, opts ...ReadoutOption) *Readout {
	r := &Readout{
		params:        p,
		state:         model.NewStateManager(),
		summaryDir:    "summaries",
		checkpointDir: "checkpoints",
		logger:        log.GetLogger(),
		nClasses:      p.NumClasses(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(
		log.ModelNameKey, "readout",
		log.ExperimentKey, p.DirName(),
	)
	return r
}

// ReadoutFactory returns a Factory building readouts with the given options.
func ReadoutFactory(opts ...ReadoutOption) Factory {
	return func(p Params) (Model, error) {
		return NewReadout(p, opts...), nil
	}
}

// SummaryPath returns the summaries directory of this experiment.
func (r *Readout) SummaryPath() string {
	return filepath.Join(r.summaryDir, r.params.DirName())
}

// CheckpointPath returns the checkpoint file of this experiment.
func (r *Readout) CheckpointPath() string {
	return filepath.Join(r.checkpointDir, r.params.DirName(), CheckpointFile)
}

// Fit trains the readout for NumEpochs·N/BatchSize steps and evaluates it
// on validation every EvalFrequency steps and after the last step. The
// history is written to the summaries directory and the final weights to
// the checkpoint directory.
func (r *Readout) Fit(ctx context.Context, training model.TrainingSet, validation model.EvaluationSet) (FitResult, error) {
	var result FitResult
	cfg := r.params.Config()

	if training.N() == 0 || validation.N() == 0 {
		return result, errors.NewModelError("Readout.Fit", "empty data", errors.ErrEmptyData)
	}

	it := training.Iter(cfg.BatchSize)
	X, y := it.Next()
	_, nFeatures := X.Dims()
	if _, vc := validation.Features().Dims(); vc != nFeatures {
		return result, errors.NewDimensionError("Readout.Fit", nFeatures, vc, 1)
	}
	if nFeatures != r.params.InputSize() {
		r.logger.Warn("feature count differs from the pixel count of one patch",
			log.FeaturesKey, nFeatures,
			"expected", r.params.InputSize(),
		)
	}

	rng := rand.New(rand.NewSource(r.seed))
	r.initWeights(nFeatures, rng)

	nSteps := cfg.NumEpochs * training.N() / cfg.BatchSize
	if nSteps < 1 {
		nSteps = 1
	}
	evalEvery := cfg.EvalFrequency
	if evalEvery <= 0 {
		evalEvery = nSteps
	}

	history, err := newHistoryWriter(r.SummaryPath())
	if err != nil {
		return result, err
	}
	defer history.Close()

	opt := newOptimizer(cfg, len(r.theta))

	r.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, training.N(),
		log.FeaturesKey, nFeatures,
		log.BatchSizeKey, cfg.BatchSize,
		log.NumEpochsKey, cfg.NumEpochs,
		log.EvalFrequencyKey, evalEvery,
	)

	start := time.Now()
	for step := 1; step <= nSteps; step++ {
		if err := ctx.Err(); err != nil {
			return result, errors.Wrapf(err, "training interrupted at step %d", step)
		}
		if step > 1 {
			X, y = it.Next()
		}

		dropout(X, cfg.Dropout, rng)
		grad, loss, err := r.gradient(X, y)
		if err != nil {
			return result, err
		}
		loss += r.regularize(grad, cfg.Regularization)
		if err := errors.CheckNumericalStability("Readout.Fit gradient", grad, step); err != nil {
			return result, err
		}
		if err := errors.CheckScalar("Readout.Fit", loss, step); err != nil {
			return result, err
		}

		lr := learningRate(cfg, step)
		opt.update(r.theta, grad, lr)
		r.step = step

		if step%evalEvery == 0 || step == nSteps {
			acc, valLoss, err := r.evaluate(validation)
			if err != nil {
				return result, err
			}
			result.Accuracy = append(result.Accuracy, acc)
			result.Loss = append(result.Loss, valLoss)
			history.add(step, lr, loss, acc, valLoss)

			r.logger.Info("Validation",
				log.PhaseKey, log.PhaseValidation,
				log.IterationKey, step,
				log.LearningRateKey, lr,
				log.AccuracyKey, acc,
				log.LossKey, valLoss,
			)
		}
	}
	result.StepDuration = time.Since(start) / time.Duration(nSteps)

	r.state.SetFitted(nFeatures, training.N())

	if err := history.finish(); err != nil {
		return result, err
	}
	if err := model.SaveModel(r.checkpoint(), r.CheckpointPath()); err != nil {
		return result, errors.Wrap(err, "failed to write checkpoint")
	}

	r.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.IterationKey, nSteps,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Predict returns the most probable class of every row of X.
func (r *Readout) Predict(X mat.Matrix) ([]int, error) {
	proba, err := r.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	pred := make([]int, n)
	for i := 0; i < n; i++ {
		pred[i] = floats.MaxIdx(proba.RawRowView(i))
	}
	return pred, nil
}

// PredictProba returns the class probabilities (samples × classes).
func (r *Readout) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if err := r.state.RequireFitted("Readout", "PredictProba"); err != nil {
		return nil, err
	}
	if _, c := X.Dims(); c != r.nFeatures {
		return nil, errors.NewDimensionError("Readout.PredictProba", r.nFeatures, c, 1)
	}
	return r.probabilities(X), nil
}

// Restore loads the weights written by Fit from the checkpoint directory.
func (r *Readout) Restore() error {
	var ckpt readoutCheckpoint
	if err := model.LoadModel(&ckpt, r.CheckpointPath()); err != nil {
		return err
	}
	if ckpt.Classes != r.nClasses {
		return errors.NewDimensionError("Readout.Restore", r.nClasses, ckpt.Classes, 1)
	}
	if len(ckpt.Theta) != ckpt.Classes*(ckpt.Features+1) {
		return errors.NewValueError("Readout.Restore", "checkpoint weights do not match its shape")
	}
	r.theta = ckpt.Theta
	r.nFeatures = ckpt.Features
	r.step = ckpt.Step
	r.state.SetFitted(ckpt.Features, 0)
	return nil
}

type readoutCheckpoint struct {
	DirName  string
	Classes  int
	Features int
	Step     int
	Theta    []float64
}

func (r *Readout) checkpoint() readoutCheckpoint {
	return readoutCheckpoint{
		DirName:  r.params.DirName(),
		Classes:  r.nClasses,
		Features: r.nFeatures,
		Step:     r.step,
		Theta:    r.theta,
	}
}

// initWeights は小さな正規乱数で重みを初期化する（バイアスは0）
func (r *Readout) initWeights(nFeatures int, rng *rand.Rand) {
	r.nFeatures = nFeatures
	r.theta = make([]float64, r.nClasses*(nFeatures+1))
	for c := 0; c < r.nClasses; c++ {
		w := r.weights(c)
		for j := range w {
			w[j] = rng.NormFloat64() * 0.01
		}
	}
}

// weights returns the weight row of class c, without its bias.
func (r *Readout) weights(c int) []float64 {
	off := c * (r.nFeatures + 1)
	return r.theta[off : off+r.nFeatures]
}

func (r *Readout) probabilities(X mat.Matrix) *mat.Dense {
	n, _ := X.Dims()
	W := mat.NewDense(r.nClasses, r.nFeatures+1, r.theta)

	scores := mat.NewDense(n, r.nClasses, nil)
	scores.Mul(X, W.Slice(0, r.nClasses, 0, r.nFeatures).T())
	for i := 0; i < n; i++ {
		row := scores.RawRowView(i)
		for c := range row {
			row[c] += W.At(c, r.nFeatures)
		}
		softmax(row)
	}
	return scores
}

// gradient returns the mean cross-entropy gradient over the batch (same
// layout as theta) and the mean loss.
func (r *Readout) gradient(X *mat.Dense, y []int) ([]float64, float64, error) {
	n, _ := X.Dims()
	for _, label := range y {
		if label < 0 || label >= r.nClasses {
			return nil, 0, errors.NewValueError("Readout.Fit", "label out of range of the output layer")
		}
	}

	width := r.nFeatures + 1
	size := len(r.theta)
	acc := parallel.SumWithThreshold(n, parallelThreshold, size+1, func(start, end int, acc []float64) {
		p := make([]float64, r.nClasses)
		for i := start; i < end; i++ {
			x := X.RawRowView(i)
			for c := range p {
				p[c] = floats.Dot(r.weights(c), x) + r.theta[c*width+r.nFeatures]
			}
			softmax(p)
			acc[size] -= errors.StabilizeLog(p[y[i]])

			for c := range p {
				diff := p[c]
				if c == y[i] {
					diff--
				}
				off := c * width
				floats.AddScaled(acc[off:off+r.nFeatures], diff, x)
				acc[off+r.nFeatures] += diff
			}
		}
	})

	floats.Scale(1/float64(n), acc)
	return acc[:size], acc[size], nil
}

// regularize adds the L2 gradient of the weights (biases excluded) to grad
// and returns the penalty reg·‖w‖²/2.
func (r *Readout) regularize(grad []float64, reg float64) float64 {
	if reg == 0 {
		return 0
	}
	var penalty float64
	width := r.nFeatures + 1
	for c := 0; c < r.nClasses; c++ {
		w := r.weights(c)
		floats.AddScaled(grad[c*width:c*width+r.nFeatures], reg, w)
		penalty += floats.Dot(w, w)
	}
	return reg * penalty / 2
}

func (r *Readout) evaluate(validation model.EvaluationSet) (float64, float64, error) {
	proba := r.probabilities(validation.Features())
	labels := validation.Labels()

	pred := make([]int, len(labels))
	for i := range pred {
		pred[i] = floats.MaxIdx(proba.RawRowView(i))
	}
	acc, err := metrics.Accuracy(labels, pred)
	if err != nil {
		return 0, 0, err
	}
	loss, err := metrics.LogLoss(labels, proba)
	if err != nil {
		return 0, 0, err
	}
	return acc, loss, nil
}

// learningRate は指数減衰した学習率 lr·rate^(step/decay_steps) を返す
func learningRate(cfg Config, step int) float64 {
	if cfg.DecaySteps <= 0 || cfg.DecayRate <= 0 {
		return cfg.LearningRate
	}
	return cfg.LearningRate * math.Pow(cfg.DecayRate, float64(step)/cfg.DecaySteps)
}

// dropout applies inverted dropout in place; keep is the keep probability.
func dropout(X *mat.Dense, keep float64, rng *rand.Rand) {
	if keep >= 1 {
		return
	}
	X.Apply(func(_, _ int, v float64) float64 {
		if rng.Float64() >= keep {
			return 0
		}
		return v / keep
	}, X)
}

func softmax(z []float64) {
	maxZ := floats.Max(z)
	var sum float64
	for i := range z {
		z[i] = math.Exp(z[i] - maxZ)
		sum += z[i]
	}
	floats.Scale(1/sum, z)
}

var _ Model = (*Readout)(nil)
