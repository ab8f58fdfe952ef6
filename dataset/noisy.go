package dataset

import (
	"math/rand"

	"github.com/YuminosukeSato/scnnexp/core/model"
	"gonum.org/v1/gonum/mat"
)

// Noisy is a Labeled dataset whose batches receive additive N(0, level²)
// noise. The level goes linearly from start to end over the first nit
// batches of an iterator and stays at end afterwards.
type Noisy struct {
	*Labeled
	start float64
	end   float64
	nit   int
	seed  int64
}

// NewNoisy wraps base. With nit <= 0 every batch uses the end level.
func NewNoisy(base *Labeled, start, end float64, nit int, seed int64) *Noisy {
	return &Noisy{
		Labeled: base,
		start:   start,
		end:     end,
		nit:     nit,
		seed:    seed,
	}
}

// Level returns the noise level applied to the batch with the given index.
func (n *Noisy) Level(batch int) float64 {
	if n.nit <= 0 || batch >= n.nit {
		return n.end
	}
	return n.start + (n.end-n.start)*float64(batch)/float64(n.nit)
}

// Iter returns an iterator whose noise ramp starts at the start level.
func (n *Noisy) Iter(batchSize int) model.BatchIterator {
	return &noisyIter{
		ds:    n,
		inner: n.Labeled.Iter(batchSize),
		rng:   rand.New(rand.NewSource(n.seed + 1)),
	}
}

type noisyIter struct {
	ds    *Noisy
	inner model.BatchIterator
	step  int
	rng   *rand.Rand
}

// Next implements model.BatchIterator.
func (it *noisyIter) Next() (*mat.Dense, []int) {
	X, y := it.inner.Next()
	level := it.ds.Level(it.step)
	it.step++

	if level != 0 {
		X.Apply(func(_, _ int, v float64) float64 {
			return v + level*it.rng.NormFloat64()
		}, X)
	}
	return X, y
}

var _ model.TrainingSet = (*Noisy)(nil)
