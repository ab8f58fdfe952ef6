// Package results persists the test error of every experiment in one
// NumPy .npz archive per training-noise level sigma.
//
// Each archive holds a single entry "data": an n×3 float64 array whose rows
// are (order, sigma_noise, test_error), in the order the experiments ran.
package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sbinet/npyio/npz"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scnnexp/pkg/errors"
)

// DataKey is the archive entry holding the result rows.
const DataKey = "data"

// Record is one row of a results archive.
type Record struct {
	Order      int
	SigmaNoise float64
	TestError  float64
}

// Archive stores result archives in Dir.
type Archive struct {
	Dir string
}

// NewArchive returns an Archive rooted at dir.
func NewArchive(dir string) *Archive {
	return &Archive{Dir: dir}
}

// Path returns the archive file for sigma.
func (a *Archive) Path(sigma int) string {
	return filepath.Join(a.Dir, fmt.Sprintf("scnn_results_list_sigma%d.npz", sigma))
}

// Load returns the records stored for sigma. A missing archive yields no
// records and no error.
func (a *Archive) Load(sigma int) ([]Record, error) {
	path := a.Path(sigma)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}

	r, err := npz.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open results archive %s", path)
	}
	defer r.Close()

	key, ok := dataKey(r.Keys())
	if !ok {
		return nil, errors.Wrapf(errors.ErrArchiveFormat, "%s has no %q entry", path, DataKey)
	}

	var m mat.Dense
	if err := r.Read(key, &m); err != nil {
		return nil, errors.Wrapf(err, "failed to read %q from %s", DataKey, path)
	}
	return fromMatrix(&m, path)
}

// Append adds rec to the archive for sigma, creating it if needed, and
// returns the full list now on disk. The whole archive is rewritten.
// Concurrent writers to the same archive are not supported.
func (a *Archive) Append(sigma int, rec Record) ([]Record, error) {
	records, err := a.Load(sigma)
	if err != nil {
		return nil, err
	}
	records = append(records, rec)

	if err := a.write(sigma, records); err != nil {
		return nil, err
	}
	return records, nil
}

func (a *Archive) write(sigma int, records []Record) error {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create results directory %s", a.Dir)
	}

	path := a.Path(sigma)
	w, err := npz.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create results archive %s", path)
	}
	if err := w.Write(DataKey, toMatrix(records)); err != nil {
		w.Close()
		return errors.Wrapf(err, "failed to write %q to %s", DataKey, path)
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "failed to close results archive %s", path)
	}
	return nil
}

// dataKey は "data" または "data.npy" のエントリ名を探す
func dataKey(keys []string) (string, bool) {
	for _, k := range keys {
		if strings.TrimSuffix(k, ".npy") == DataKey {
			return k, true
		}
	}
	return "", false
}

func toMatrix(records []Record) *mat.Dense {
	m := mat.NewDense(len(records), 3, nil)
	for i, r := range records {
		m.SetRow(i, []float64{float64(r.Order), r.SigmaNoise, r.TestError})
	}
	return m
}

func fromMatrix(m *mat.Dense, path string) ([]Record, error) {
	rows, cols := m.Dims()
	if cols != 3 {
		return nil, errors.Wrapf(errors.ErrArchiveFormat, "%s: %q has %d columns, want 3", path, DataKey, cols)
	}
	records := make([]Record, rows)
	for i := range records {
		records[i] = Record{
			Order:      int(m.At(i, 0)),
			SigmaNoise: m.At(i, 1),
			TestError:  m.At(i, 2),
		}
	}
	return records, nil
}
