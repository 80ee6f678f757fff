package value

import "github.com/danielpatrickdp/belief-controller/internal/belief"

// ValueFunction estimates the cost of a belief at a decision point.
// Train's beliefs and costs are parallel slices; how a variant updates its
// parameters, or whether it does at all, is up to the variant.
type ValueFunction interface {
	Evaluate(b *belief.ParticleBelief) (float64, error)
	Train(beliefs []*belief.ParticleBelief, costs []float64) error
}

// #region terminal
// Terminal scores a belief by Gaussian KL divergence from the belief to a fixed
// prior. It is used at the planning horizon.
type Terminal struct {
	prior *belief.ParticleBelief
}

// NewTerminal returns a terminal value function over prior.
// The prior is shared and must not be mutated afterwards.
func NewTerminal(prior *belief.ParticleBelief) *Terminal {
	return &Terminal{prior: prior}
}

// Prior returns the reference belief.
func (t *Terminal) Prior() *belief.ParticleBelief {
	return t.prior
}

// Evaluate returns KL(b || prior).
func (t *Terminal) Evaluate(b *belief.ParticleBelief) (float64, error) {
	return b.KL(t.prior)
}

// Train is a no-op.
func (t *Terminal) Train(_ []*belief.ParticleBelief, _ []float64) error {
	return nil
}

// #endregion terminal

var _ ValueFunction = (*Terminal)(nil)
