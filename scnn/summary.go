package scnn

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/scnnexp/pkg/errors"
)

const (
	// HistoryFile holds one CSV row per evaluation step.
	HistoryFile = "history.csv"
	// ValidationPlotFile is the validation curve rendered after training.
	ValidationPlotFile = "validation.png"
)

// historyWriter records the evaluation history of one training run.
type historyWriter struct {
	dir  string
	file *os.File
	csv  *csv.Writer

	accuracy plotter.XYs
	loss     plotter.XYs
}

func newHistoryWriter(dir string) (*historyWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create summary directory %s", dir)
	}
	f, err := os.Create(filepath.Join(dir, HistoryFile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create history file")
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"step", "learning_rate", "train_loss", "val_accuracy", "val_loss"}); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to write history header")
	}
	return &historyWriter{dir: dir, file: f, csv: w}, nil
}

func (h *historyWriter) add(step int, lr, trainLoss, acc, valLoss float64) {
	// 書き込みエラーは Flush 時にまとめて検出する
	_ = h.csv.Write([]string{
		strconv.Itoa(step),
		formatFloat(lr),
		formatFloat(trainLoss),
		formatFloat(acc),
		formatFloat(valLoss),
	})
	h.accuracy = append(h.accuracy, plotter.XY{X: float64(step), Y: acc})
	h.loss = append(h.loss, plotter.XY{X: float64(step), Y: valLoss})
}

// finish flushes the CSV file and renders the validation curve.
func (h *historyWriter) finish() error {
	h.csv.Flush()
	if err := h.csv.Error(); err != nil {
		return errors.Wrap(err, "failed to write history")
	}
	return h.plot(filepath.Join(h.dir, ValidationPlotFile))
}

// Close releases the history file. It is safe to call after finish.
func (h *historyWriter) Close() error {
	return h.file.Close()
}

func (h *historyWriter) plot(path string) error {
	p := plot.New()
	p.Title.Text = "Validation"
	p.X.Label.Text = "step"

	acc, err := plotter.NewLine(h.accuracy)
	if err != nil {
		return errors.Wrap(err, "failed to build accuracy curve")
	}
	loss, err := plotter.NewLine(h.loss)
	if err != nil {
		return errors.Wrap(err, "failed to build loss curve")
	}
	loss.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(acc, loss, plotter.NewGrid())
	p.Legend.Add("accuracy", acc)
	p.Legend.Add("loss", loss)
	p.Legend.Top = true

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save %s", path)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
