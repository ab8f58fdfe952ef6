// Package dataprep loads the raw spherical maps of an experiment and turns
// them into standardized training, validation and test splits.
package dataprep

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"

	"github.com/sbinet/npyio/npz"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scnnexp/pkg/errors"
	"github.com/YuminosukeSato/scnnexp/preprocessing"
)

// Archive entries of a data file.
const (
	FeaturesKey = "x"
	LabelsKey   = "labels"
)

// Raw is a set of samples (rows of X, one pixel per column) and their labels.
type Raw struct {
	X      *mat.Dense
	Labels []int
}

// Validate checks that there is one label per sample.
func (r Raw) Validate(op string) error {
	if r.X == nil || len(r.Labels) == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if n, _ := r.X.Dims(); n != len(r.Labels) {
		return errors.NewDimensionError(op, n, len(r.Labels), 0)
	}
	return nil
}

// Provider supplies the raw data of an experiment.
type Provider interface {
	// TrainingData returns the normalized training samples for (sigma,
	// order) and the standard deviation they were divided by.
	TrainingData(sigma, order int) (Raw, float64, error)

	// TestingData returns the test samples with sigmaNoise·N(0,1) noise
	// added, divided by the training standard deviation std.
	TestingData(sigma, order int, sigmaNoise, std float64) (Raw, error)
}

// NPZProvider reads data archives laid out as
//
//	{Root}/training/sigma{sigma}_order{order}.npz
//	{Root}/testing/sigma{sigma}_order{order}.npz
//
// Each archive holds an n×npix float64 entry "x" and an n×1 entry "labels".
type NPZProvider struct {
	Root string
	Seed int64
}

// NewNPZProvider returns a provider reading from root.
func NewNPZProvider(root string, seed int64) *NPZProvider {
	return &NPZProvider{Root: root, Seed: seed}
}

// Path returns the archive of a split ("training" or "testing").
func (p *NPZProvider) Path(split string, sigma, order int) string {
	return filepath.Join(p.Root, split, fmt.Sprintf("sigma%d_order%d.npz", sigma, order))
}

// TrainingData implements Provider.
func (p *NPZProvider) TrainingData(sigma, order int) (Raw, float64, error) {
	raw, err := readRaw(p.Path("training", sigma, order))
	if err != nil {
		return Raw{}, 0, err
	}
	std, err := preprocessing.GlobalStd(raw.X)
	if err != nil {
		return Raw{}, 0, errors.Wrap(err, "training data")
	}
	raw.X.Scale(1/std, raw.X)
	return raw, std, nil
}

// TestingData implements Provider.
func (p *NPZProvider) TestingData(sigma, order int, sigmaNoise, std float64) (Raw, error) {
	if std <= 0 {
		return Raw{}, errors.NewValidationError("std", "must be positive", std)
	}
	raw, err := readRaw(p.Path("testing", sigma, order))
	if err != nil {
		return Raw{}, err
	}
	rng := rand.New(rand.NewSource(p.Seed))
	AddNoise(raw.X, sigmaNoise, rng)
	raw.X.Scale(1/std, raw.X)
	return raw, nil
}

// AddNoise adds level·N(0,1) to every element of X in place.
func AddNoise(X *mat.Dense, level float64, rng *rand.Rand) {
	if level == 0 {
		return
	}
	X.Apply(func(_, _ int, v float64) float64 {
		return v + level*rng.NormFloat64()
	}, X)
}

func readRaw(path string) (Raw, error) {
	r, err := npz.Open(path)
	if err != nil {
		return Raw{}, errors.Wrapf(err, "failed to open data archive %s", path)
	}
	defer r.Close()

	keys := r.Keys()
	var x, labels mat.Dense
	if err := readEntry(r, keys, FeaturesKey, &x, path); err != nil {
		return Raw{}, err
	}
	if err := readEntry(r, keys, LabelsKey, &labels, path); err != nil {
		return Raw{}, err
	}

	n, c := labels.Dims()
	if c != 1 {
		return Raw{}, errors.Wrapf(errors.ErrArchiveFormat, "%s: %q has %d columns, want 1", path, LabelsKey, c)
	}
	raw := Raw{X: &x, Labels: make([]int, n)}
	for i := range raw.Labels {
		raw.Labels[i] = int(labels.At(i, 0))
	}
	if err := raw.Validate("dataprep.readRaw"); err != nil {
		return Raw{}, errors.Wrapf(err, "invalid data archive %s", path)
	}
	return raw, nil
}

func readEntry(r *npz.Reader, keys []string, name string, dst *mat.Dense, path string) error {
	for _, k := range keys {
		if strings.TrimSuffix(k, ".npy") == name {
			if err := r.Read(k, dst); err != nil {
				return errors.Wrapf(err, "failed to read %q from %s", name, path)
			}
			return nil
		}
	}
	return errors.Wrapf(errors.ErrArchiveFormat, "%s has no %q entry", path, name)
}
