package model

import (
	"github.com/danielpatrickdp/belief-controller/internal/belief"
	"gonum.org/v1/gonum/stat/distuv"
)

// #region gaussian
// Gaussian is an additive-noise observation model: the disturbance is an
// observation of particle + Gain*control corrupted by N(0, Sigma^2).
type Gaussian struct {
	Gain  float64
	Sigma float64
}

// LogLikelihood returns log N(disturbance; particle + Gain*control, Sigma^2).
func (g Gaussian) LogLikelihood(particle, control, disturbance float64) float64 {
	n := distuv.Normal{Mu: particle + g.Gain*control, Sigma: g.Sigma}
	return n.LogProb(disturbance)
}

// #endregion gaussian

// Flat leaves every weight unchanged.
type Flat struct{}

// LogLikelihood returns 0.
func (Flat) LogLikelihood(_, _, _ float64) float64 { return 0 }

var (
	_ belief.Model = Gaussian{}
	_ belief.Model = Flat{}
)
