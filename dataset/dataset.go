// Package dataset wraps feature matrices and labels into the training and
// validation sets consumed by model backends.
//
// Labeled serves shuffled mini-batches forever, reshuffling at every epoch
// boundary. Noisy adds Gaussian noise to every batch with a level that ramps
// linearly from a start to an end level, which augments the training set
// towards the noise level the model is later tested at.
package dataset

import (
	"math/rand"

	"github.com/YuminosukeSato/scnnexp/core/model"
	"github.com/YuminosukeSato/scnnexp/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Labeled is a fixed set of samples (rows of X) with one class label each.
type Labeled struct {
	x       *mat.Dense
	labels  []int
	shuffle bool
	seed    int64
}

// Option configures a Labeled dataset.
type Option func(*Labeled)

// WithShuffle controls whether batches are drawn in a shuffled order.
func WithShuffle(shuffle bool) Option {
	return func(l *Labeled) {
		l.shuffle = shuffle
	}
}

// WithSeed sets the seed of the shuffling generator.
func WithSeed(seed int64) Option {
	return func(l *Labeled) {
		l.seed = seed
	}
}

// NewLabeled creates a dataset; shuffling is on by default.
func NewLabeled(x *mat.Dense, labels []int, opts ...Option) (*Labeled, error) {
	if x == nil || len(labels) == 0 {
		return nil, errors.NewModelError("dataset.NewLabeled", "empty data", errors.ErrEmptyData)
	}
	r, _ := x.Dims()
	if r != len(labels) {
		return nil, errors.NewDimensionError("dataset.NewLabeled", r, len(labels), 0)
	}

	l := &Labeled{x: x, labels: labels, shuffle: true}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// N returns the number of samples.
func (l *Labeled) N() int {
	return len(l.labels)
}

// Features returns the feature matrix (samples × features).
func (l *Labeled) Features() *mat.Dense {
	return l.x
}

// Labels returns the class labels.
func (l *Labeled) Labels() []int {
	return l.labels
}

// Iter returns an endless mini-batch iterator. Batches larger than the
// dataset wrap into the next epoch.
func (l *Labeled) Iter(batchSize int) model.BatchIterator {
	if batchSize < 1 {
		batchSize = 1
	}
	it := &labeledIter{
		ds:    l,
		batch: batchSize,
		perm:  make([]int, l.N()),
		rng:   rand.New(rand.NewSource(l.seed)),
	}
	it.newEpoch()
	return it
}

type labeledIter struct {
	ds    *Labeled
	batch int
	perm  []int
	pos   int
	rng   *rand.Rand
}

func (it *labeledIter) newEpoch() {
	for i := range it.perm {
		it.perm[i] = i
	}
	if it.ds.shuffle {
		it.rng.Shuffle(len(it.perm), func(i, j int) {
			it.perm[i], it.perm[j] = it.perm[j], it.perm[i]
		})
	}
	it.pos = 0
}

// Next implements model.BatchIterator.
func (it *labeledIter) Next() (*mat.Dense, []int) {
	_, c := it.ds.x.Dims()
	X := mat.NewDense(it.batch, c, nil)
	y := make([]int, it.batch)

	for k := 0; k < it.batch; k++ {
		if it.pos == len(it.perm) {
			it.newEpoch()
		}
		idx := it.perm[it.pos]
		it.pos++
		X.SetRow(k, it.ds.x.RawRowView(idx))
		y[k] = it.ds.labels[idx]
	}
	return X, y
}

var (
	_ model.TrainingSet   = (*Labeled)(nil)
	_ model.EvaluationSet = (*Labeled)(nil)
)
