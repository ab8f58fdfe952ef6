package dataprep

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scnnexp/pkg/errors"
	"github.com/YuminosukeSato/scnnexp/preprocessing"
)

// TrainFraction is the share of the training data kept for training; the
// rest becomes the validation split.
const TrainFraction = 0.8

// Splits are the standardized inputs of one experiment.
type Splits struct {
	Train      Raw
	Validation Raw
	Test       Raw
}

// Preprocessor turns raw training and test data into Splits.
type Preprocessor func(train, test Raw, sigmaNoise float64, seed int64) (Splits, error)

// Preprocess shuffles train and splits it 80/20 into training and
// validation sets. The validation set receives the same noise level as the
// test set. All three splits are standardized per pixel with the statistics
// of the training split.
func Preprocess(train, test Raw, sigmaNoise float64, seed int64) (Splits, error) {
	if err := train.Validate("dataprep.Preprocess"); err != nil {
		return Splits{}, err
	}
	if err := test.Validate("dataprep.Preprocess"); err != nil {
		return Splits{}, err
	}
	n, c := train.X.Dims()
	if _, tc := test.X.Dims(); tc != c {
		return Splits{}, errors.NewDimensionError("dataprep.Preprocess", c, tc, 1)
	}

	nTrain := int(float64(n) * TrainFraction)
	if nTrain < 1 || nTrain >= n {
		return Splits{}, errors.NewValidationError("train", "at least two samples are needed for a training/validation split", n)
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)
	trainSplit := subset(train, perm[:nTrain])
	valSplit := subset(train, perm[nTrain:])
	AddNoise(valSplit.X, sigmaNoise, rng)

	scaler := preprocessing.NewStandardScalerDefault()
	xTrain, err := scaler.FitTransform(trainSplit.X)
	if err != nil {
		return Splits{}, errors.Wrap(err, "standardize training split")
	}
	xVal, err := scaler.Transform(valSplit.X)
	if err != nil {
		return Splits{}, errors.Wrap(err, "standardize validation split")
	}
	xTest, err := scaler.Transform(test.X)
	if err != nil {
		return Splits{}, errors.Wrap(err, "standardize test split")
	}

	return Splits{
		Train:      Raw{X: xTrain, Labels: trainSplit.Labels},
		Validation: Raw{X: xVal, Labels: valSplit.Labels},
		Test:       Raw{X: xTest, Labels: append([]int(nil), test.Labels...)},
	}, nil
}

func subset(r Raw, rows []int) Raw {
	_, c := r.X.Dims()
	out := Raw{X: mat.NewDense(len(rows), c, nil), Labels: make([]int, len(rows))}
	for i, idx := range rows {
		out.X.SetRow(i, r.X.RawRowView(idx))
		out.Labels[i] = r.Labels[idx]
	}
	return out
}

var _ Preprocessor = Preprocess
