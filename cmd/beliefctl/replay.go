package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/danielpatrickdp/belief-controller/internal/belief"
	"github.com/danielpatrickdp/belief-controller/internal/logging"
	"github.com/danielpatrickdp/belief-controller/internal/replay"
	"github.com/danielpatrickdp/belief-controller/internal/state"
	"github.com/danielpatrickdp/belief-controller/internal/update"
	"github.com/danielpatrickdp/belief-controller/internal/value"
	"github.com/spf13/cobra"
)

// errDiverged signals that a replay produced different actions than expected.
var errDiverged = errors.New("replay diverged from expected actions")

func init() {
	replayCmd.Flags().String("fixture", "", "path to fixture JSON (fixture mode)")
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-run logged or fixture steps and compare decisions",
	Long:  "Replay steps in memory from the prior. With --fixture the steps come from a JSON fixture; otherwise from the store's provenance log.",
	Example: `
# Regression check against a fixture
beliefctl replay --fixture internal/replay/testdata/track_session.json

# Re-run every logged turn in the store with the current config
beliefctl replay --db belief_state.db
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fixturePath, _ := cmd.Flags().GetString("fixture")
		if fixturePath != "" {
			return runFixtureMode(cmd.OutOrStdout(), fixturePath)
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := state.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer store.Close()

		models, closeModel, err := modelFactory(cfg)
		if err != nil {
			return err
		}
		defer closeModel()

		config := replay.ReplayConfig{
			UpdateConfig: cfg.UpdateConfig(),
			GateConfig:   cfg.GateConfig(),
			EvalConfig:   cfg.EvalConfig(),
		}
		return runDBMode(cmd.OutOrStdout(), store, models(cmd.Context()), config)
	},
}

// #region db-extract

// loadLoggedSteps reads user turns from provenance_log in insertion order.
func loadLoggedSteps(db *sql.DB) ([]update.Step, []string, error) {
	rows, err := db.Query(
		`SELECT step_json, decision FROM provenance_log
		 WHERE trigger_type = 'user_turn' ORDER BY id ASC`,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query provenance: %w", err)
	}
	defer rows.Close()

	var steps []update.Step
	var decisions []string
	for rows.Next() {
		var stepJSON sql.NullString
		var decision string
		if err := rows.Scan(&stepJSON, &decision); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		if !stepJSON.Valid {
			continue
		}
		var sr logging.StepRecord
		if err := json.Unmarshal([]byte(stepJSON.String), &sr); err != nil {
			return nil, nil, fmt.Errorf("parse step json: %w", err)
		}
		steps = append(steps, update.Step{TurnID: sr.TurnID, Control: sr.Control, Disturbance: sr.Disturbance})
		decisions = append(decisions, decision)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return steps, decisions, nil
}

func runDBMode(w io.Writer, store *state.Store, m belief.Model, config replay.ReplayConfig) error {
	prior, err := store.GetPrior()
	if err != nil {
		return err
	}
	steps, decisions, err := loadLoggedSteps(store.DB())
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return errors.New("no user_turn entries found in provenance_log")
	}

	results, final, err := replay.Replay(prior, steps, m, value.NewTerminal(prior.Belief), config)
	if err != nil {
		return err
	}
	return printComparison(w, results, decisions, replay.Summarize(results, final))
}

// #endregion db-extract

// #region output

func runFixtureMode(w io.Writer, path string) error {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return err
	}
	results, final, err := f.Run(func(prior *belief.ParticleBelief) value.ValueFunction {
		return value.NewTerminal(prior)
	})
	if err != nil {
		return err
	}

	expected := make([]string, len(f.ExpectedResults))
	for i, e := range f.ExpectedResults {
		expected[i] = e.Action
	}
	return printComparison(w, results, expected, replay.Summarize(results, final))
}

// printComparison prints replayed against expected actions and returns
// errDiverged when any differ.
func printComparison(w io.Writer, results []replay.ReplayResult, expected []string, summary replay.ReplaySummary) error {
	fmt.Fprintf(w, "%-12s| %-15s| %-15s| %s\n", "Turn", "Expected", "Replayed", "Match")
	fmt.Fprintf(w, "%-12s+%-15s+%-15s+%s\n",
		"------------", "----------------", "----------------", "------")

	total := min(len(results), len(expected))
	matches := 0
	for i := 0; i < total; i++ {
		exp := expected[i]
		got := results[i].Action
		match := "DIFF"
		if exp == got {
			match = "OK"
			matches++
		}
		fmt.Fprintf(w, "%-12s| %-15s| %-15s| %s\n", results[i].TurnID, exp, got, match)
	}

	diverge := total - matches
	fmt.Fprintf(w, "\nSummary: %d total, %d match, %d diverge\n", total, matches, diverge)
	fmt.Fprintf(w, "Actions: %d commit, %d gate_reject, %d eval_rollback, %d no_op, %d update_error\n",
		summary.Commits, summary.GateRejects, summary.EvalRollbacks, summary.NoOps, summary.UpdateErrors)

	if diverge > 0 || len(results) != len(expected) {
		return errDiverged
	}
	return nil
}

// #endregion output
