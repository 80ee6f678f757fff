package state

import (
	"time"

	"github.com/danielpatrickdp/belief-controller/internal/belief"
)

// #region belief-record
// BeliefRecord is a versioned, immutable belief snapshot.
type BeliefRecord struct {
	VersionID   string
	ParentID    string
	Belief      *belief.ParticleBelief
	CreatedAt   time.Time
	MetricsJSON string
}

// #endregion belief-record

// #region version-with-provenance
// VersionWithProvenance pairs a belief version with the provenance row that committed it.
type VersionWithProvenance struct {
	BeliefRecord
	Decision string
	Reason   string
	StepJSON string
}

// #endregion version-with-provenance
