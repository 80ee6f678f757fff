package orchestrator

import (
	"context"

	"github.com/danielpatrickdp/belief-controller/internal/belief"
	"github.com/danielpatrickdp/belief-controller/internal/replay"
)

// #region model-factory

// ModelFactory returns the observation model for one pipeline attempt.
// Remote models latch their first failure, so each attempt gets a fresh one.
type ModelFactory func(ctx context.Context) belief.Model

// StaticModel wraps a stateless model as a ModelFactory.
func StaticModel(m belief.Model) ModelFactory {
	return func(context.Context) belief.Model { return m }
}

// #endregion

// #region turn-outcome

// TurnOutcome is what one persisted turn produced.
type TurnOutcome struct {
	Result          replay.ReplayResult
	Attempts        int    // pipeline runs, including retries after update_error
	ActiveVersionID string // active version after the turn
	LoggedVersionID string // version the provenance row was written against
}

// #endregion
