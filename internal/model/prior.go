package model

import (
	"math/rand/v2"

	"github.com/danielpatrickdp/belief-controller/internal/belief"
	"gonum.org/v1/gonum/stat/distuv"
)

// GaussianPrior draws count equally weighted particles from N(mean, std^2).
// The same seed always yields the same particles.
func GaussianPrior(mean, std float64, count int, seed uint64) *belief.ParticleBelief {
	n := distuv.Normal{Mu: mean, Sigma: std, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
	b := belief.New()
	for i := 0; i < count; i++ {
		b.AddParticle(n.Rand(), 0)
	}
	return b
}
