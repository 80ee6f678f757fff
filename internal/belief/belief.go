package belief

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// #region particle-belief
// ParticleBelief is a weighted particle approximation of a scalar distribution.
// values[i] and logWeights[i] form one particle.
//
// A belief is mutated only while it is being built (AddParticle, SetParticles,
// SetLogWeights, NormalizeWeights). Once handed to a consumer it must be treated
// as read-only; Copy and NextState produce new instances instead.
type ParticleBelief struct {
	values     []float64
	logWeights []float64
}

// New returns an empty belief.
func New() *ParticleBelief {
	return &ParticleBelief{}
}

// FromValues returns a belief with equal (zero) log-weights over values.
func FromValues(values []float64) *ParticleBelief {
	return &ParticleBelief{
		values:     slices.Clone(values),
		logWeights: make([]float64, len(values)),
	}
}

// AddParticle appends one particle. Pass 0 as logWeight for an unweighted particle.
func (b *ParticleBelief) AddParticle(value, logWeight float64) {
	b.values = append(b.values, value)
	b.logWeights = append(b.logWeights, logWeight)
}

// SetParticles replaces the particle values. The caller keeps both sequences
// the same length; consumers report ErrDimensionMismatch otherwise.
func (b *ParticleBelief) SetParticles(values []float64) {
	b.values = slices.Clone(values)
}

// SetLogWeights replaces the log-weights. See SetParticles.
func (b *ParticleBelief) SetLogWeights(logWeights []float64) {
	b.logWeights = slices.Clone(logWeights)
}

// Len returns the number of particles.
func (b *ParticleBelief) Len() int {
	return len(b.values)
}

// Values returns a copy of the particle values.
func (b *ParticleBelief) Values() []float64 {
	return slices.Clone(b.values)
}

// LogWeights returns a copy of the log-weights.
func (b *ParticleBelief) LogWeights() []float64 {
	return slices.Clone(b.logWeights)
}

// Copy returns an independent deep copy preserving order and weights.
func (b *ParticleBelief) Copy() *ParticleBelief {
	return &ParticleBelief{
		values:     slices.Clone(b.values),
		logWeights: slices.Clone(b.logWeights),
	}
}

// #endregion particle-belief

// #region validation
func (b *ParticleBelief) validate() error {
	if len(b.values) != len(b.logWeights) {
		return fmt.Errorf("%w: %d values, %d log-weights", ErrDimensionMismatch, len(b.values), len(b.logWeights))
	}
	if len(b.values) == 0 {
		return ErrEmptyBelief
	}
	return nil
}

// shiftedWeights returns exp(lw_i - max(lw)). Every consumer uses ratio forms,
// so the common factor exp(max) cancels.
func (b *ParticleBelief) shiftedWeights() ([]float64, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	maxLW := floats.Max(b.logWeights)
	if math.IsInf(maxLW, 0) || math.IsNaN(maxLW) {
		return nil, fmt.Errorf("%w: max log-weight %v", ErrDegenerateWeights, maxLW)
	}
	w := make([]float64, len(b.logWeights))
	for i, lw := range b.logWeights {
		if math.IsNaN(lw) {
			return nil, fmt.Errorf("%w: log-weight %d is NaN", ErrDegenerateWeights, i)
		}
		w[i] = math.Exp(lw - maxLW)
	}
	return w, nil
}

// #endregion validation

// #region normalize
// LogSumExp returns ln(sum(exp(logWeights))) using the max-shift trick.
func (b *ParticleBelief) LogSumExp() (float64, error) {
	if err := b.validate(); err != nil {
		return 0, err
	}
	lse := floats.LogSumExp(b.logWeights)
	if math.IsInf(lse, 0) || math.IsNaN(lse) {
		return 0, fmt.Errorf("%w: log-sum-exp %v", ErrDegenerateWeights, lse)
	}
	return lse, nil
}

// NormalizeWeights shifts the log-weights in place so that sum(exp(lw)) == 1.
func (b *ParticleBelief) NormalizeWeights() error {
	lse, err := b.LogSumExp()
	if err != nil {
		return err
	}
	floats.AddConst(-lse, b.logWeights)
	return nil
}

// #endregion normalize

// #region moments
// Moments returns the weighted mean and the reliability-weighted variance
//
//	sum(w) / (sum(w)^2 - sum(w^2)) * sum(w * (x - mean)^2)
//
// which reduces to the Bessel-corrected sample variance for equal weights.
// Weights need not be normalized.
func (b *ParticleBelief) Moments() (mean, variance float64, err error) {
	w, err := b.shiftedWeights()
	if err != nil {
		return 0, 0, err
	}

	var sumW, sumWX float64
	for i, wi := range w {
		sumW += wi
		sumWX += wi * b.values[i]
	}
	mean = sumWX / sumW

	var sumW2, sumSq float64
	for i, wi := range w {
		d := b.values[i] - mean
		sumW2 += wi * wi
		sumSq += wi * d * d
	}
	den := sumW*sumW - sumW2
	if den <= 0 {
		return mean, 0, fmt.Errorf("%w: variance denominator %v", ErrDegenerateWeights, den)
	}
	variance = sumW / den * sumSq
	return mean, variance, nil
}

// ESS returns the effective sample size (sum(w))^2 / sum(w^2).
func (b *ParticleBelief) ESS() (float64, error) {
	w, err := b.shiftedWeights()
	if err != nil {
		return 0, err
	}
	sumW := floats.Sum(w)
	return sumW * sumW / floats.Dot(w, w), nil
}

// #endregion moments

// #region kl
// KL fits b and other to 1-D Gaussians through Moments and returns the
// closed-form divergence KL(b || other). The direction is from b to other.
func (b *ParticleBelief) KL(other *ParticleBelief) (float64, error) {
	mu1, var1, err := b.Moments()
	if err != nil {
		return 0, fmt.Errorf("source moments: %w", err)
	}
	mu2, var2, err := other.Moments()
	if err != nil {
		return 0, fmt.Errorf("target moments: %w", err)
	}
	if !(var1 > 0) || !(var2 > 0) || math.IsInf(var1, 0) || math.IsInf(var2, 0) {
		return 0, fmt.Errorf("%w: source %v, target %v", ErrZeroVariance, var1, var2)
	}

	sigma1 := math.Sqrt(var1)
	sigma2 := math.Sqrt(var2)
	dMu := mu1 - mu2
	return math.Log(sigma2) - math.Log(sigma1) + (sigma1*sigma1+dMu*dMu)/(2*sigma2*sigma2) - 0.5, nil
}

// #endregion kl

// #region sample
// Sample draws one particle value by inverse CDF over the unnormalized weights.
// The first particle whose cumulative fraction strictly exceeds the draw wins;
// if rounding leaves no such particle the last one is returned.
func (b *ParticleBelief) Sample(src RandomSource) (float64, error) {
	w, err := b.shiftedWeights()
	if err != nil {
		return 0, err
	}
	total := floats.Sum(w)
	threshold := src.Uniform()

	var sum float64
	for i, wi := range w {
		sum += wi
		if sum/total > threshold {
			return b.values[i], nil
		}
	}
	return b.values[len(b.values)-1], nil
}

// #endregion sample

// #region next-state
// NextState returns a new belief with the same particle values and log-weights
// incremented by m's log-likelihood per particle. It neither normalizes nor
// resamples.
func (b *ParticleBelief) NextState(m Model, control, disturbance float64) (*ParticleBelief, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	next := &ParticleBelief{
		values:     slices.Clone(b.values),
		logWeights: make([]float64, len(b.logWeights)),
	}
	for i, v := range b.values {
		next.logWeights[i] = b.logWeights[i] + m.LogLikelihood(v, control, disturbance)
	}
	return next, nil
}

// #endregion next-state

// #region matrix
// Matrix exports one (value, logWeight) row per particle in insertion order.
func (b *ParticleBelief) Matrix() (*mat.Dense, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	m := mat.NewDense(len(b.values), 2, nil)
	for i := range b.values {
		m.Set(i, 0, b.values[i])
		m.Set(i, 1, b.logWeights[i])
	}
	return m, nil
}

// FromMatrix builds a belief from an N×2 (value, logWeight) matrix.
func FromMatrix(m mat.Matrix) (*ParticleBelief, error) {
	rows, cols := m.Dims()
	if cols != 2 {
		return nil, fmt.Errorf("%w: matrix has %d columns, want 2", ErrDimensionMismatch, cols)
	}
	if rows == 0 {
		return nil, ErrEmptyBelief
	}
	b := &ParticleBelief{
		values:     make([]float64, rows),
		logWeights: make([]float64, rows),
	}
	for i := 0; i < rows; i++ {
		b.values[i] = m.At(i, 0)
		b.logWeights[i] = m.At(i, 1)
	}
	return b, nil
}

// #endregion matrix
