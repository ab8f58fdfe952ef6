// Package model defines the interfaces shared by datasets, model backends and
// metrics, plus the fitted-state and checkpoint helpers used by backends.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Predictor is the interface for models that assign a class to each sample.
type Predictor interface {
	// Predict returns one class label per row of X.
	Predict(X mat.Matrix) ([]int, error)
}

// BatchIterator yields mini-batches indefinitely.
type BatchIterator interface {
	// Next returns the next batch of features (batch × features) and labels.
	Next() (*mat.Dense, []int)
}

// TrainingSet is a source of mini-batches used during fitting.
type TrainingSet interface {
	// N returns the number of samples in the set.
	N() int

	// Iter returns an endless iterator over shuffled mini-batches.
	Iter(batchSize int) BatchIterator
}

// EvaluationSet is a fixed, labeled set of samples.
type EvaluationSet interface {
	N() int
	Features() *mat.Dense
	Labels() []int
}
