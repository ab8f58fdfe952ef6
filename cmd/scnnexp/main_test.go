package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sbinet/npyio/npz"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scnnexp/dataprep"
	"github.com/YuminosukeSato/scnnexp/internal/cli"
	"github.com/YuminosukeSato/scnnexp/pkg/errors"
	"github.com/YuminosukeSato/scnnexp/results"
	"github.com/YuminosukeSato/scnnexp/scnn"
)

// writeDataset は小さな合成データを training/ と testing/ に書き出す
func writeDataset(t *testing.T, p *dataprep.NPZProvider, sigma, order int) {
	t.Helper()
	for split, n := range map[string]int{"training": 50, "testing": 10} {
		x := mat.NewDense(n, 4, nil)
		labels := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			label := float64(i % 2)
			labels.Set(i, 0, label)
			for j := 0; j < 4; j++ {
				x.Set(i, j, float64((i*7+j*3)%11)+4*label)
			}
		}
		path := p.Path(split, sigma, order)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		w, err := npz.Create(path)
		require.NoError(t, err)
		require.NoError(t, w.Write(dataprep.FeaturesKey, x))
		require.NoError(t, w.Write(dataprep.LabelsKey, labels))
		require.NoError(t, w.Close())
	}
}

type workspace struct {
	root     string
	provider *dataprep.NPZProvider
}

func newWorkspace(t *testing.T) *workspace {
	root := t.TempDir()
	return &workspace{root: root, provider: dataprep.NewNPZProvider(filepath.Join(root, "data"), 0)}
}

func (w *workspace) args(extra ...string) []string {
	return append([]string{
		"-log-level", "error",
		"-data-dir", filepath.Join(w.root, "data"),
		"-results-dir", filepath.Join(w.root, "results", "scnn"),
		"-summaries-dir", filepath.Join(w.root, "summaries"),
		"-checkpoints-dir", filepath.Join(w.root, "checkpoints"),
	}, extra...)
}

func TestRun_Help(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, run(out, []string{"-h"}))
	require.Contains(t, out.String(), "Usage:")
}

func TestRun_UsageError(t *testing.T) {
	err := run(&bytes.Buffer{}, []string{"3", "2"})
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
}

func TestRun_UnsupportedOrder(t *testing.T) {
	ws := newWorkspace(t)
	err := run(&bytes.Buffer{}, ws.args("3", "3", "0.1"))

	var cerr *errors.ConfigurationError
	require.True(t, errors.As(err, &cerr), "got %v", err)
	require.NoFileExists(t, filepath.Join(ws.root, "results", "scnn", "scnn_results_list_sigma3.npz"))
}

func TestRun_SingleExperiment(t *testing.T) {
	ws := newWorkspace(t)
	writeDataset(t, ws.provider, 3, 4)
	name := "40sim_1024sides_0.1noise_4order_3sigma"
	stale := filepath.Join(ws.root, "summaries", name, "stale.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))

	out := &bytes.Buffer{}
	require.NoError(t, run(out, ws.args("3", "4", "0.1")))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "Launch experiment for 3, 4, 0.1", lines[0])
	require.Equal(t, "#sides: [1024, 512, 256, 128]", lines[1])
	require.True(t, strings.HasPrefix(lines[2], "The validation error is "))
	require.True(t, strings.HasPrefix(lines[3], "The testing error is "))

	records, err := results.NewArchive(filepath.Join(ws.root, "results", "scnn")).Load(3)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 4, records[0].Order)
	require.Equal(t, 0.1, records[0].SigmaNoise)
	require.GreaterOrEqual(t, records[0].TestError, 0.0)
	require.LessOrEqual(t, records[0].TestError, 1.0)

	require.NoFileExists(t, stale)
	require.FileExists(t, filepath.Join(ws.root, "summaries", name, scnn.HistoryFile))
	require.FileExists(t, filepath.Join(ws.root, "checkpoints", name, scnn.CheckpointFile))
}

func TestRun_GridFile(t *testing.T) {
	ws := newWorkspace(t)
	writeDataset(t, ws.provider, 3, 4)
	writeDataset(t, ws.provider, 2, 4)

	gridPath := filepath.Join(ws.root, "grid.hcl")
	require.NoError(t, os.WriteFile(gridPath, []byte(`
sweep {
  sigma        = 3
  orders       = [4]
  sigma_noises = [0, 0.5]
}

point {
  sigma       = 2
  order       = 4
  sigma_noise = 1
}
`), 0o600))

	out := &bytes.Buffer{}
	require.NoError(t, run(out, ws.args("-grid", gridPath)))
	require.Equal(t, 3, strings.Count(out.String(), "Launch experiment for"))

	archive := results.NewArchive(filepath.Join(ws.root, "results", "scnn"))
	sigma3, err := archive.Load(3)
	require.NoError(t, err)
	require.Len(t, sigma3, 2)
	require.Equal(t, 0.5, sigma3[1].SigmaNoise)

	sigma2, err := archive.Load(2)
	require.NoError(t, err)
	require.Len(t, sigma2, 1)
}

func TestRun_MissingData(t *testing.T) {
	ws := newWorkspace(t)
	err := run(&bytes.Buffer{}, ws.args("3", "4", "0"))
	require.Error(t, err)
	require.NoFileExists(t, filepath.Join(ws.root, "results", "scnn", "scnn_results_list_sigma3.npz"))
}
