package experiment

import (
	"testing"

	"github.com/YuminosukeSato/scnnexp/grid"
	"github.com/YuminosukeSato/scnnexp/pkg/errors"
)

func TestNsides(t *testing.T) {
	tests := []struct {
		order Order
		want  []int
	}{
		{Order4, []int{1024, 512, 256, 128}},
		{Order2, []int{1024, 512, 256, 128, 64}},
		{Order1, []int{1024, 512, 256, 128, 64, 32}},
	}

	for _, tt := range tests {
		got := tt.order.Nsides()
		if len(got) != len(tt.want) {
			t.Fatalf("order %d: got %v, want %v", tt.order, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("order %d: got %v, want %v", tt.order, got, tt.want)
			}
			if i > 0 && got[i] > got[i-1] {
				t.Errorf("order %d: schedule %v is not non-increasing", tt.order, got)
			}
		}
	}
}

func TestParseOrder(t *testing.T) {
	for _, valid := range []int{1, 2, 4} {
		if _, err := ParseOrder(valid); err != nil {
			t.Errorf("ParseOrder(%d): %v", valid, err)
		}
	}
	for _, invalid := range []int{0, 3, 5, 8, -1} {
		_, err := ParseOrder(invalid)
		var cerr *errors.ConfigurationError
		if !errors.As(err, &cerr) {
			t.Errorf("ParseOrder(%d): expected ConfigurationError, got %v", invalid, err)
		}
	}
}

func TestHyperparameters(t *testing.T) {
	tests := []struct {
		order     Order
		epochs    int
		batch     int
		layers    int
		reg       float64
		firstFeat int
	}{
		{Order4, 80, 20, 4, 2e-4, 40},
		{Order2, 250, 15, 5, 4e-4, 10},
		{Order1, 700, 10, 6, 4e-4, 10},
	}
	for _, tt := range tests {
		h := tt.order.Hyperparameters()
		if h.NumEpochs != tt.epochs || h.BatchSize != tt.batch || h.Regularization != tt.reg {
			t.Errorf("order %d: got %+v", tt.order, h)
		}
		if len(h.F) != tt.layers || len(h.K) != tt.layers || len(h.BatchNorm) != tt.layers {
			t.Errorf("order %d: expected %d layers, got %+v", tt.order, tt.layers, h)
		}
		if h.F[0] != tt.firstFeat {
			t.Errorf("order %d: F = %v", tt.order, h.F)
		}
		for i := range h.K {
			if h.K[i] != 10 || !h.BatchNorm[i] {
				t.Errorf("order %d: K = %v, BatchNorm = %v", tt.order, h.K, h.BatchNorm)
			}
		}

		// 返り値を変更してもテーブルは変わらない
		h.F[0] = -1
		if tt.order.Hyperparameters().F[0] != tt.firstFeat {
			t.Errorf("order %d: table was modified through a returned copy", tt.order)
		}
	}
}

func TestEvalFrequency(t *testing.T) {
	tests := []struct {
		epochs, nTrain, batch int
		want                  int
	}{
		{80, 1000, 20, 20},
		{250, 40, 15, 3},
		{700, 1000, 10, 350},
		{1, 10, 10, 0},
	}
	for _, tt := range tests {
		if got := EvalFrequency(tt.epochs, tt.nTrain, tt.batch); got != tt.want {
			t.Errorf("EvalFrequency(%d, %d, %d) = %d, want %d", tt.epochs, tt.nTrain, tt.batch, got, tt.want)
		}
	}
}

func TestNewParams(t *testing.T) {
	p, err := NewParams(Order4, "exp", 1000, false)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	cfg := p.Config()

	if cfg.DirName != "exp" || cfg.Conv != "chebyshev5" || cfg.Pool != "max" || cfg.Activation != "relu" {
		t.Errorf("unexpected building blocks: %+v", cfg)
	}
	if cfg.Statistics != "" {
		t.Errorf("Statistics = %q, want none", cfg.Statistics)
	}
	if cfg.EvalFrequency != 20 {
		t.Errorf("EvalFrequency = %d, want 20", cfg.EvalFrequency)
	}
	if len(cfg.M) != 2 || cfg.M[0] != 100 || cfg.M[1] != 2 {
		t.Errorf("M = %v", cfg.M)
	}
	if cfg.DecayRate != 0.98 || cfg.Dropout != 0.5 || cfg.LearningRate != 1e-4 ||
		cfg.Momentum != 0.9 || !cfg.Adam || cfg.DecaySteps != 153.6 || cfg.Use4 {
		t.Errorf("unexpected optimization settings: %+v", cfg)
	}
	if p.Order() != 4 {
		t.Errorf("Order = %d", p.Order())
	}
	idx := p.Indexes()
	if len(idx) != 4 || idx[0].Count != 65536 || idx[3].Count != 1024 {
		t.Errorf("Indexes = %+v", idx)
	}

	withStats, err := NewParams(Order2, "exp", 100, true)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	if withStats.Config().Statistics != "meanvar" {
		t.Errorf("Statistics = %q, want meanvar", withStats.Config().Statistics)
	}

	if _, err := NewParams(Order(3), "exp", 100, false); err == nil {
		t.Error("expected an error for order 3")
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		point grid.Point
		want  string
	}{
		{grid.Point{Sigma: 3, Order: 2, SigmaNoise: 0.1}, "40sim_1024sides_0.1noise_2order_3sigma"},
		{grid.Point{Sigma: 3, Order: 4, SigmaNoise: 1}, "40sim_1024sides_1.0noise_4order_3sigma"},
		{grid.Point{Sigma: 2, Order: 1, SigmaNoise: 0}, "40sim_1024sides_0.0noise_1order_2sigma"},
	}
	for _, tt := range tests {
		if got := Name(tt.point); got != tt.want {
			t.Errorf("Name(%v) = %q, want %q", tt.point, got, tt.want)
		}
	}
}
