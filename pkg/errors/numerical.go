package errors

import (
	"math"
)

// CheckNumericalStability reports a NumericalInstabilityError when any of
// values, such as the gradient of one training step, is NaN or infinite.
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckScalar is CheckNumericalStability for a single loss value.
func CheckScalar(operation string, value float64, iteration int) error {
	return CheckNumericalStability(operation, []float64{value}, iteration)
}

// StabilizeLog is log(value) clamped at 1e-10, so that a zero class
// probability yields a large finite cross-entropy.
func StabilizeLog(value float64) float64 {
	const epsilon = 1e-10
	return math.Log(math.Max(value, epsilon))
}
