package belief

import "errors"

// #region errors
// Every consuming operation validates its receiver and fails fast with one of
// these instead of propagating non-finite numbers.
var (
	// ErrEmptyBelief is returned when an operation needs at least one particle.
	ErrEmptyBelief = errors.New("belief has no particles")

	// ErrDimensionMismatch is returned when values and log-weights differ in length,
	// or when a matrix does not have the (value, logWeight) column layout.
	ErrDimensionMismatch = errors.New("particle values and log-weights differ in length")

	// ErrDegenerateWeights is returned when the weights carry no usable mass:
	// a non-finite log-sum-exp, or all mass on a single particle where the
	// variance estimator's denominator vanishes.
	ErrDegenerateWeights = errors.New("degenerate particle weights")

	// ErrZeroVariance is returned by KL when either fitted Gaussian has no spread.
	ErrZeroVariance = errors.New("gaussian fit has zero variance")
)

// #endregion errors

// #region collaborators
// Model supplies the per-particle log-likelihood used for importance reweighting.
type Model interface {
	LogLikelihood(particle, control, disturbance float64) float64
}

// ModelFunc adapts a plain function to Model.
type ModelFunc func(particle, control, disturbance float64) float64

// LogLikelihood calls f.
func (f ModelFunc) LogLikelihood(particle, control, disturbance float64) float64 {
	return f(particle, control, disturbance)
}

// RandomSource yields uniform variates in [0, 1).
// Implementations shared across goroutines must be safe for concurrent use.
type RandomSource interface {
	Uniform() float64
}

// #endregion collaborators
