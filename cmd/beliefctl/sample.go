package main

import (
	"fmt"

	"github.com/danielpatrickdp/belief-controller/internal/random"
	"github.com/danielpatrickdp/belief-controller/internal/state"
	"github.com/spf13/cobra"
)

func init() {
	sampleCmd.Flags().IntP("count", "n", 10, "number of draws")
	sampleCmd.Flags().Uint64("seed", 0, "random seed (default: seed from config)")
	sampleCmd.Flags().String("version", "", "version to sample (default: active)")
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Draw particle values from a belief",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		n, _ := cmd.Flags().GetInt("count")
		seed, _ := cmd.Flags().GetUint64("seed")
		if !cmd.Flags().Changed("seed") {
			seed = cfg.Seed
		}
		versionID, _ := cmd.Flags().GetString("version")

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

		src := random.New(seed)
		out := cmd.OutOrStdout()
		for i := 0; i < n; i++ {
			v, err := rec.Belief.Sample(src)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%.6f\n", v)
		}
		return nil
	},
}
