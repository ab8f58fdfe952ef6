package scnn

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scnnexp/dataset"
	"github.com/YuminosukeSato/scnnexp/pkg/errors"
	"github.com/YuminosukeSato/scnnexp/pkg/log"
)

// separable は x0 の符号でクラスが決まる4次元データを生成する
func separable(t *testing.T, n int, seed int64) *dataset.Labeled {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, 4, nil)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		labels[i] = i % 2
		sign := -1.0
		if labels[i] == 1 {
			sign = 1.0
		}
		x.Set(i, 0, sign*(1+rng.Float64()))
		for j := 1; j < 4; j++ {
			x.Set(i, j, rng.NormFloat64()*0.1)
		}
	}
	ds, err := dataset.NewLabeled(x, labels, dataset.WithSeed(seed))
	if err != nil {
		t.Fatalf("NewLabeled: %v", err)
	}
	return ds
}

func newTestReadout(t *testing.T, cfg Config) (*Readout, string) {
	t.Helper()
	p, err := NewParams(cfg, 1)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	root := t.TempDir()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	r := NewReadout(p,
		WithSummaryDir(filepath.Join(root, "summaries")),
		WithCheckpointDir(filepath.Join(root, "checkpoints")),
		WithReadoutLogger(logger),
		WithReadoutSeed(1),
	)
	return r, root
}

func TestReadoutFitPredict(t *testing.T) {
	r, root := newTestReadout(t, validConfig())
	train := separable(t, 100, 1)
	val := separable(t, 40, 2)

	result, err := r.Fit(context.Background(), train, val)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// 20 epochs * 100 / 10 = 200 steps, evaluated every 5 steps
	if len(result.Accuracy) != 40 || len(result.Loss) != 40 {
		t.Fatalf("got %d/%d evaluations, want 40", len(result.Accuracy), len(result.Loss))
	}
	if acc := result.Accuracy[len(result.Accuracy)-1]; acc < 0.95 {
		t.Errorf("final validation accuracy %v, want >= 0.95", acc)
	}
	if result.Loss[len(result.Loss)-1] >= result.Loss[0] {
		t.Errorf("validation loss did not decrease: first %v last %v", result.Loss[0], result.Loss[len(result.Loss)-1])
	}

	pred, err := r.Predict(val.Features())
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	wrong := 0
	for i, p := range pred {
		if p != val.Labels()[i] {
			wrong++
		}
	}
	if wrong > 2 {
		t.Errorf("%d of %d validation samples misclassified", wrong, len(pred))
	}

	for _, f := range []string{
		filepath.Join(root, "summaries", "test", HistoryFile),
		filepath.Join(root, "summaries", "test", ValidationPlotFile),
		filepath.Join(root, "checkpoints", "test", CheckpointFile),
	} {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("expected %s to exist: %v", f, err)
		}
	}
}

func TestReadoutRestore(t *testing.T) {
	r, root := newTestReadout(t, validConfig())
	val := separable(t, 40, 2)
	if _, err := r.Fit(context.Background(), separable(t, 100, 1), val); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	want, err := r.Predict(val.Features())
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	restored := NewReadout(r.params, WithCheckpointDir(filepath.Join(root, "checkpoints")))
	if err := restored.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, err := restored.Predict(val.Features())
	if err != nil {
		t.Fatalf("Predict after restore: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("prediction %d differs after restore: %d != %d", i, got[i], want[i])
		}
	}
}

func TestReadoutPredictBeforeFit(t *testing.T) {
	r, _ := newTestReadout(t, validConfig())
	_, err := r.Predict(mat.NewDense(1, 4, nil))
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}
}

func TestReadoutFitErrors(t *testing.T) {
	t.Run("canceled context", func(t *testing.T) {
		r, _ := newTestReadout(t, validConfig())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Fit(ctx, separable(t, 20, 1), separable(t, 10, 2))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("label outside output layer", func(t *testing.T) {
		r, _ := newTestReadout(t, validConfig())
		x := mat.NewDense(2, 4, nil)
		train, err := dataset.NewLabeled(x, []int{0, 5})
		if err != nil {
			t.Fatalf("NewLabeled: %v", err)
		}
		_, err = r.Fit(context.Background(), train, separable(t, 10, 2))
		var verr *errors.ValueError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValueError, got %v", err)
		}
	})

	t.Run("non-finite features", func(t *testing.T) {
		cfg := validConfig()
		cfg.Dropout = 1
		r, _ := newTestReadout(t, cfg)
		x := mat.NewDense(4, 4, nil)
		x.Set(2, 1, math.NaN())
		train, err := dataset.NewLabeled(x, []int{0, 1, 0, 1}, dataset.WithShuffle(false))
		if err != nil {
			t.Fatalf("NewLabeled: %v", err)
		}
		_, err = r.Fit(context.Background(), train, separable(t, 10, 2))
		var nerr *errors.NumericalInstabilityError
		if !errors.As(err, &nerr) {
			t.Fatalf("expected NumericalInstabilityError, got %v", err)
		}
		if nerr.Operation != "Readout.Fit gradient" || nerr.Iteration != 1 {
			t.Errorf("got operation %q at step %d, want gradient check at step 1", nerr.Operation, nerr.Iteration)
		}
	})

	t.Run("validation width mismatch", func(t *testing.T) {
		r, _ := newTestReadout(t, validConfig())
		val, err := dataset.NewLabeled(mat.NewDense(2, 3, nil), []int{0, 1})
		if err != nil {
			t.Fatalf("NewLabeled: %v", err)
		}
		_, err = r.Fit(context.Background(), separable(t, 20, 1), val)
		var derr *errors.DimensionError
		if !errors.As(err, &derr) {
			t.Fatalf("expected DimensionError, got %v", err)
		}
	})
}

func TestReadoutWarnsOnInputSizeMismatch(t *testing.T) {
	cfg := validConfig()
	cfg.NumEpochs = 1
	p, err := NewParams(cfg, 1)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	logger, _ := log.NewTestLogger(log.LevelDebug)
	root := t.TempDir()
	r := NewReadout(p,
		WithSummaryDir(root),
		WithCheckpointDir(root),
		WithReadoutLogger(logger),
	)

	x := mat.NewDense(10, 6, nil)
	labels := []int{0, 1, 0, 1, 0, 1, 0, 1, 0, 1}
	ds, err := dataset.NewLabeled(x, labels)
	if err != nil {
		t.Fatalf("NewLabeled: %v", err)
	}
	if _, err := r.Fit(context.Background(), ds, ds); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !logger.ContainsMessage("feature count differs from the pixel count of one patch") {
		t.Error("expected a warning about the input size")
	}
}

func TestLearningRate(t *testing.T) {
	cfg := validConfig()
	cfg.LearningRate = 1e-4
	cfg.DecayRate = 0.98
	cfg.DecaySteps = 153.6

	if got := learningRate(cfg, 0); got != 1e-4 {
		t.Errorf("step 0: %v", got)
	}
	if got := learningRate(cfg, 1536); math.Abs(got-1e-4*math.Pow(0.98, 10)) > 1e-15 {
		t.Errorf("step 1536: %v", got)
	}

	cfg.DecaySteps = 0
	if got := learningRate(cfg, 1000); got != 1e-4 {
		t.Errorf("without decay: %v", got)
	}
}

func TestOptimizers(t *testing.T) {
	t.Run("momentum", func(t *testing.T) {
		opt := newOptimizer(Config{Momentum: 0.9}, 1)
		theta := []float64{1}
		opt.update(theta, []float64{1}, 0.1)
		opt.update(theta, []float64{1}, 0.1)
		// v1 = 1, v2 = 1.9 → 1 - 0.1 - 0.19
		if math.Abs(theta[0]-0.71) > 1e-12 {
			t.Errorf("theta = %v, want 0.71", theta[0])
		}
	})

	t.Run("adam first step", func(t *testing.T) {
		opt := newOptimizer(Config{Adam: true}, 2)
		theta := []float64{0, 0}
		opt.update(theta, []float64{2, -0.5}, 0.01)
		// bias-corrected first step moves by lr·sign(g)
		if math.Abs(theta[0]+0.01) > 1e-6 || math.Abs(theta[1]-0.01) > 1e-6 {
			t.Errorf("theta = %v", theta)
		}
	})
}
