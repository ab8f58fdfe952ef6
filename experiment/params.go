// Package experiment derives the configuration of a spherical CNN
// experiment from its (sigma, order, sigma_noise) key and runs it end to
// end: data loading, preprocessing, training, evaluation and result
// persistence.
package experiment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/scnnexp/grid"
	"github.com/YuminosukeSato/scnnexp/pkg/errors"
	"github.com/YuminosukeSato/scnnexp/scnn"
)

// Nside is the base HEALPix resolution of the input maps.
const Nside = 1024

// NumEvaluations is the number of validation evaluations spread over a
// training run.
const NumEvaluations = 200

// NumClasses is the number of classes of the classification task.
const NumClasses = 2

// Order is the HEALPix subdivision order of the input patches.
type Order int

// Supported orders.
const (
	Order1 Order = 1
	Order2 Order = 2
	Order4 Order = 4
)

// Hyperparameters are the order-dependent training settings.
type Hyperparameters struct {
	NumEpochs      int
	BatchSize      int
	F              []int // 特徴マップ数
	K              []int // チェビシェフ多項式の次数
	BatchNorm      []bool
	Regularization float64
}

type orderTable struct {
	// nsides の各段は Nside を 2^i で割った値、最後の段のみ floor で頭打ち
	levels int
	floor  int
	hyper  Hyperparameters
}

var orders = map[Order]orderTable{
	Order4: {
		levels: 4,
		floor:  128,
		hyper: Hyperparameters{
			NumEpochs:      80,
			BatchSize:      20,
			F:              []int{40, 160, 320, 20},
			K:              repeatInt(10, 4),
			BatchNorm:      repeatBool(true, 4),
			Regularization: 2e-4,
		},
	},
	Order2: {
		levels: 5,
		floor:  128,
		hyper: Hyperparameters{
			NumEpochs:      250,
			BatchSize:      15,
			F:              []int{10, 80, 320, 40, 10},
			K:              repeatInt(10, 5),
			BatchNorm:      repeatBool(true, 5),
			Regularization: 4e-4,
		},
	},
	Order1: {
		levels: 6,
		floor:  64,
		hyper: Hyperparameters{
			NumEpochs:      700,
			BatchSize:      10,
			F:              []int{10, 40, 160, 40, 20, 10},
			K:              repeatInt(10, 6),
			BatchNorm:      repeatBool(true, 6),
			Regularization: 4e-4,
		},
	},
}

// ParseOrder validates an order given as an integer.
func ParseOrder(order int) (Order, error) {
	o := Order(order)
	if _, ok := orders[o]; !ok {
		return 0, errors.NewConfigurationError("order", order, "no parameters for this value of order (supported: 1, 2, 4)")
	}
	return o, nil
}

// Nsides returns the resolution of every layer: successive halvings of
// Nside, with the coarsest level capped at a per-order floor.
func (o Order) Nsides() []int {
	t, ok := orders[o]
	if !ok {
		return nil
	}
	nsides := make([]int, t.levels)
	for i := range nsides {
		nsides[i] = Nside >> i
	}
	last := len(nsides) - 1
	if nsides[last] > t.floor {
		nsides[last] = t.floor
	}
	return nsides
}

// Hyperparameters returns a copy of the order's training settings.
func (o Order) Hyperparameters() Hyperparameters {
	h := orders[o].hyper
	h.F = append([]int(nil), h.F...)
	h.K = append([]int(nil), h.K...)
	h.BatchNorm = append([]bool(nil), h.BatchNorm...)
	return h
}

// EvalFrequency spreads NumEvaluations evaluations over the training run:
// floor(numEpochs·nTrain/batchSize/NumEvaluations).
func EvalFrequency(numEpochs, nTrain, batchSize int) int {
	return int(float64(numEpochs) * float64(nTrain) / float64(batchSize) / NumEvaluations)
}

// NewParams builds the complete configuration of an experiment named name
// with nTrain training samples. statLayer adds a mean/variance statistics
// layer before the fully connected layers.
func NewParams(order Order, name string, nTrain int, statLayer bool) (scnn.Params, error) {
	if _, ok := orders[order]; !ok {
		return scnn.Params{}, errors.NewConfigurationError("order", int(order), "no parameters for this value of order (supported: 1, 2, 4)")
	}
	h := order.Hyperparameters()

	cfg := scnn.Config{
		DirName:    name,
		Conv:       "chebyshev5",
		Pool:       "max",
		Activation: "relu",
		Nsides:     order.Nsides(),

		NumEpochs:      h.NumEpochs,
		BatchSize:      h.BatchSize,
		F:              h.F,
		K:              h.K,
		BatchNorm:      h.BatchNorm,
		Regularization: h.Regularization,
		M:              []int{100, NumClasses},

		DecayRate:    0.98,
		Dropout:      0.5,
		LearningRate: 1e-4,
		Momentum:     0.9,
		Adam:         true,
		DecaySteps:   153.6,
		Use4:         false,

		EvalFrequency: EvalFrequency(h.NumEpochs, nTrain, h.BatchSize),
	}
	if statLayer {
		cfg.Statistics = "meanvar"
	}
	return scnn.NewParams(cfg, int(order))
}

// Name returns the experiment name used for the summary and checkpoint
// directories, e.g. 40sim_1024sides_0.5noise_2order_3sigma.
func Name(p grid.Point) string {
	return fmt.Sprintf("40sim_%dsides_%snoise_%dorder_%dsigma",
		Nside, grid.FormatFloat(p.SigmaNoise), p.Order, p.Sigma)
}

// formatInts は [1024, 512, 256] の形式で整数列を整形する
func formatInts(v []int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.Itoa(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func repeatInt(v, n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func repeatBool(v bool, n int) []bool {
	s := make([]bool, n)
	for i := range s {
		s[i] = v
	}
	return s
}
