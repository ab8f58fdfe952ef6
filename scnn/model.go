package scnn

import (
	"context"
	"time"

	"github.com/YuminosukeSato/scnnexp/core/model"
)

// Model is a classifier trained on a (noisy) training set and monitored on
// a validation set.
type Model interface {
	model.Predictor

	// Fit trains the model. It returns the validation accuracy and loss
	// recorded at every evaluation step.
	Fit(ctx context.Context, training model.TrainingSet, validation model.EvaluationSet) (FitResult, error)
}

// FitResult is the training history returned by Model.Fit.
type FitResult struct {
	Accuracy     []float64
	Loss         []float64
	StepDuration time.Duration // 1ステップあたりの平均時間
}

// Factory builds a model from a frozen configuration.
type Factory func(Params) (Model, error)
