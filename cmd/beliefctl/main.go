package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/danielpatrickdp/belief-controller/internal/config"
	"github.com/danielpatrickdp/belief-controller/internal/logging"
	"github.com/danielpatrickdp/belief-controller/internal/model"
	"github.com/danielpatrickdp/belief-controller/internal/state"
	"github.com/spf13/cobra"
)

// #region root

var rootCmd = &cobra.Command{
	Use:           "beliefctl",
	Short:         "Versioned particle belief controller",
	Long:          "Track a scalar belief as weighted particles, gate every update, and keep a versioned history in SQLite.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to YAML config")
	rootCmd.PersistentFlags().String("db", "", "path to belief_state.db (overrides config and BELIEF_DB)")
	rootCmd.PersistentFlags().String("log-level", "", "debug | info | warn | error")
	rootCmd.PersistentFlags().String("log-format", "", "text | json")

	rootCmd.AddCommand(
		runCmd,
		inspectCmd,
		replayCmd,
		exportCmd,
		fixtureExportCmd,
		serveModelCmd,
		sampleCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion root

// #region helpers

// loadConfig resolves the config file and the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if f, _ := cmd.Flags().GetString("log-format"); f != "" {
		cfg.Log.Format = f
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
}

// openStore opens the store and seeds it with the configured prior when empty.
func openStore(cfg config.Config, logger *slog.Logger) (*state.Store, error) {
	store, err := state.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := store.GetCurrent(); err == nil {
		return store, nil
	}
	logger.Info("no active belief, creating prior",
		"mean", cfg.Prior.Mean, "std", cfg.Prior.Std, "count", cfg.Prior.Count, "seed", cfg.Seed)
	prior := model.GaussianPrior(cfg.Prior.Mean, cfg.Prior.Std, cfg.Prior.Count, cfg.Seed)
	if _, err := store.CreateInitialBelief(prior); err != nil {
		store.Close()
		return nil, fmt.Errorf("create prior: %w", err)
	}
	return store, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion helpers
