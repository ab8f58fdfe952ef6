package scnn

import (
	"math"
)

// optimizer updates parameters in place from their gradient.
type optimizer interface {
	update(theta, grad []float64, lr float64)
}

func newOptimizer(cfg Config, size int) optimizer {
	if cfg.Adam {
		return &adam{
			m:     make([]float64, size),
			v:     make([]float64, size),
			beta1: 0.9,
			beta2: 0.999,
			eps:   1e-8,
		}
	}
	return &momentumSGD{
		velocity: make([]float64, size),
		momentum: cfg.Momentum,
	}
}

// adam implements Adam with bias correction.
type adam struct {
	m, v         []float64
	t            int
	beta1, beta2 float64
	eps          float64
}

func (a *adam) update(theta, grad []float64, lr float64) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, g := range grad {
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g
		theta[i] -= lr * (a.m[i] / c1) / (math.Sqrt(a.v[i]/c2) + a.eps)
	}
}

// momentumSGD: v ← μ·v + g, θ ← θ - lr·v
type momentumSGD struct {
	velocity []float64
	momentum float64
}

func (s *momentumSGD) update(theta, grad []float64, lr float64) {
	for i, g := range grad {
		s.velocity[i] = s.momentum*s.velocity[i] + g
		theta[i] -= lr * s.velocity[i]
	}
}
