// Package grid produces the work list of (sigma, order, sigma_noise) points
// swept by the experiment runner.
//
// The default grid mirrors the published sweep. Custom sweeps are read from
// HCL files:
//
//	sweep {
//	  sigma        = 3
//	  orders       = [1, 2, 4]
//	  sigma_noises = [0, 0.5, 1, 1.5, 2]
//	}
//
//	point {
//	  sigma       = 3
//	  order       = 2
//	  sigma_noise = 0.1
//	}
//
// Sweeps are expanded order-major and come first, in file order; points
// follow, in file order.
package grid

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/YuminosukeSato/scnnexp/pkg/errors"
)

// Point is one experiment key.
type Point struct {
	Sigma      int
	Order      int
	SigmaNoise float64
}

// String renders the point the way run reports print it, e.g. "3, 4, 1.0".
func (p Point) String() string {
	return fmt.Sprintf("%d, %d, %s", p.Sigma, p.Order, FormatFloat(p.SigmaNoise))
}

// FormatFloat formats v the way experiment names and reports have always
// spelled floats: integral values keep a ".0" suffix (1 → "1.0") and very
// small or large magnitudes use an exponent (1e-05).
func FormatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "nan"
	}
	if a := math.Abs(v); a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Default returns the default sweep: sigma 3, every supported order and
// test-time noise levels from 0 to 2.
func Default() []Point {
	return Sweep(3, []int{1, 2, 4}, []float64{0, 0.5, 1, 1.5, 2})
}

// Sweep expands the cartesian product of orders and noise levels for one
// sigma, order-major.
func Sweep(sigma int, orders []int, sigmaNoises []float64) []Point {
	points := make([]Point, 0, len(orders)*len(sigmaNoises))
	for _, order := range orders {
		for _, noise := range sigmaNoises {
			points = append(points, Point{Sigma: sigma, Order: order, SigmaNoise: noise})
		}
	}
	return points
}

type hclSweep struct {
	Sigma       int       `hcl:"sigma"`
	Orders      []int     `hcl:"orders"`
	SigmaNoises []float64 `hcl:"sigma_noises"`
}

type hclPoint struct {
	Sigma      int     `hcl:"sigma"`
	Order      int     `hcl:"order"`
	SigmaNoise float64 `hcl:"sigma_noise"`
}

type hclGridFile struct {
	Sweeps []*hclSweep `hcl:"sweep,block"`
	Points []*hclPoint `hcl:"point,block"`
}

// Load parses an HCL grid file. A file that yields no points is an error.
func Load(path string) ([]Point, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "failed to parse grid file %s", path)
	}

	var parsed hclGridFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, errors.Wrapf(diags, "failed to decode grid file %s", path)
	}

	var points []Point
	for _, s := range parsed.Sweeps {
		points = append(points, Sweep(s.Sigma, s.Orders, s.SigmaNoises)...)
	}
	for _, p := range parsed.Points {
		points = append(points, Point{Sigma: p.Sigma, Order: p.Order, SigmaNoise: p.SigmaNoise})
	}

	if len(points) == 0 {
		return nil, errors.NewValidationError("grid", "grid file defines no experiments", path)
	}
	return points, nil
}
