package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/belief-controller/internal/belief"
	"github.com/danielpatrickdp/belief-controller/internal/config"
	"github.com/danielpatrickdp/belief-controller/internal/replay"
	"github.com/danielpatrickdp/belief-controller/internal/state"
	"github.com/spf13/cobra"
)

func init() {
	exportCmd.Flags().String("version", "", "version to export (default: active)")
	exportCmd.Flags().StringP("out", "o", "", "output path (default: <version>.particles)")

	fixtureExportCmd.Flags().StringP("out", "o", "", "output fixture JSON path")
	fixtureExportCmd.Flags().String("description", "exported from provenance_log", "fixture description")
	_ = fixtureExportCmd.MarkFlagRequired("out")
}

// #region export

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a belief version as a binary particle matrix",
	Long: `Write one (value, log-weight) row per particle: int32 rows, int32 cols,
then row-major float64 values, all little-endian.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		versionID, _ := cmd.Flags().GetString("version")
		outPath, _ := cmd.Flags().GetString("out")

		store, err := state.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer store.Close()

		var rec state.BeliefRecord
		if versionID == "" {
			rec, err = store.GetCurrent()
		} else {
			rec, err = store.GetVersion(versionID)
		}
		if err != nil {
			return err
		}
		if outPath == "" {
			outPath = rec.VersionID + ".particles"
		}

		m, err := rec.Belief.Matrix()
		if err != nil {
			return err
		}
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		if err := belief.WriteMatrix(f, m); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", outPath, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d particles of %s to %s\n", rec.Belief.Len(), rec.VersionID, outPath)
		return nil
	},
}

// #endregion export

// #region fixture-export

var fixtureExportCmd = &cobra.Command{
	Use:   "fixture-export",
	Short: "Write the logged session as a replay fixture",
	Long:  "Export the prior, the active config, and every logged user turn with its recorded decision as a fixture JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		outPath, _ := cmd.Flags().GetString("out")
		desc, _ := cmd.Flags().GetString("description")

		store, err := state.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer store.Close()

		f, err := buildFixture(store, cfg, desc)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal fixture: %w", err)
		}
		if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d steps to %s\n", len(f.Steps), outPath)
		return nil
	},
}

func buildFixture(store *state.Store, cfg config.Config, desc string) (*replay.Fixture, error) {
	prior, err := store.GetPrior()
	if err != nil {
		return nil, err
	}
	steps, decisions, err := loadLoggedSteps(store.DB())
	if err != nil {
		return nil, err
	}

	f := &replay.Fixture{
		Description: desc,
		Prior: replay.FixturePrior{
			VersionID:  prior.VersionID,
			Particles:  prior.Belief.Values(),
			LogWeights: prior.Belief.LogWeights(),
		},
		Model: replay.FixtureModel{Gain: cfg.Model.Gain, Sigma: cfg.Model.Sigma},
		Config: replay.FixtureConfig{
			UpdateConfig: replay.FixtureUpdateConfig{NoOpTolerance: cfg.Update.NoOpTolerance},
			GateConfig: replay.FixtureGateConfig{
				MinESSRatio: cfg.Gate.MinESSRatio,
				MaxStepKL:   cfg.Gate.MaxStepKL,
				MinVariance: cfg.Gate.MinVariance,
			},
			EvalConfig: replay.FixtureEvalConfig{
				MaxTerminalValue: cfg.Eval.MaxTerminalValue,
				MaxAbsMean:       cfg.Eval.MaxAbsMean,
			},
		},
	}
	for i, s := range steps {
		f.Steps = append(f.Steps, replay.FixtureStep{TurnID: s.TurnID, Control: s.Control, Disturbance: s.Disturbance})
		f.ExpectedResults = append(f.ExpectedResults, replay.FixtureExpectedResult{TurnID: s.TurnID, Action: decisions[i]})
	}
	return f, nil
}

// #endregion fixture-export
