package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/danielpatrickdp/belief-controller/internal/belief"
	"github.com/danielpatrickdp/belief-controller/internal/logging"
	"github.com/danielpatrickdp/belief-controller/internal/state"
	"github.com/spf13/cobra"
)

func init() {
	inspectCmd.Flags().Int("last", 20, "show N most recent versions")
	inspectCmd.Flags().String("version", "", "show single version detail")
	inspectCmd.Flags().BoolP("json", "j", false, "output as JSON instead of table")
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show belief versions and their provenance",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		last, _ := cmd.Flags().GetInt("last")
		version, _ := cmd.Flags().GetString("version")
		jsonOut, _ := cmd.Flags().GetBool("json")

		store, err := state.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer store.Close()

		if version != "" {
			return runDetailMode(cmd.OutOrStdout(), store, version, jsonOut)
		}
		return runListMode(cmd.OutOrStdout(), store, last, jsonOut)
	},
}

// #region list-mode

type listRow struct {
	VersionID string   `json:"version_id"`
	ParentID  string   `json:"parent_id,omitempty"`
	Particles int      `json:"particles"`
	Mean      *float64 `json:"mean,omitempty"`
	Variance  *float64 `json:"variance,omitempty"`
	ESS       *float64 `json:"ess,omitempty"`
	Decision  string   `json:"decision"`
	Reason    string   `json:"reason,omitempty"`
	CreatedAt string   `json:"created_at"`
}

func newListRow(rec state.BeliefRecord) listRow {
	lr := listRow{
		VersionID: rec.VersionID,
		ParentID:  rec.ParentID,
		Particles: rec.Belief.Len(),
		CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if mean, variance, err := rec.Belief.Moments(); err == nil {
		lr.Mean = &mean
		lr.Variance = &variance
	}
	if ess, err := rec.Belief.ESS(); err == nil {
		lr.ESS = &ess
	}
	return lr
}

func runListMode(w io.Writer, store *state.Store, last int, jsonOut bool) error {
	versions, err := store.ListVersionsWithProvenance(last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(w, "no versions found")
		return nil
	}

	// Store returns DESC, reverse for chronological
	rows := make([]listRow, len(versions))
	for i, vp := range versions {
		lr := newListRow(vp.BeliefRecord)
		lr.Decision = vp.Decision
		if lr.Decision == "" && vp.ParentID == "" {
			lr.Decision = "prior"
		}
		lr.Reason = vp.Reason
		rows[len(versions)-1-i] = lr
	}

	if jsonOut {
		return printJSON(w, rows)
	}

	fmt.Fprintf(w, "%-10s  %-10s  %6s  %10s  %10s  %8s  %-14s  %s\n",
		"Version", "Parent", "N", "Mean", "Variance", "ESS", "Decision", "Time")
	fmt.Fprintf(w, "%-10s+-%-10s+-%6s+-%10s+-%10s+-%8s+-%-14s+-%s\n",
		"----------", "----------", "------", "----------", "----------", "--------", "--------------", "--------------------")
	for _, r := range rows {
		fmt.Fprintf(w, "%-10s  %-10s  %6d  %10s  %10s  %8s  %-14s  %s\n",
			shortID(r.VersionID), shortID(r.ParentID), r.Particles,
			fmtOpt(r.Mean, "%.4f"), fmtOpt(r.Variance, "%.4f"), fmtOpt(r.ESS, "%.1f"),
			r.Decision, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailView struct {
	listRow
	KLToPrior *float64             `json:"kl_to_prior,omitempty"`
	Metrics   json.RawMessage      `json:"metrics,omitempty"`
	Steps     []logging.StepRecord `json:"steps,omitempty"`
}

func runDetailMode(w io.Writer, store *state.Store, versionID string, jsonOut bool) error {
	rec, err := store.GetVersion(versionID)
	if err != nil {
		return err
	}
	view := detailView{listRow: newListRow(rec)}
	if rec.MetricsJSON != "" {
		view.Metrics = json.RawMessage(rec.MetricsJSON)
	}
	if prior, err := store.GetPrior(); err == nil {
		if kl, err := rec.Belief.KL(prior.Belief); err == nil {
			view.KLToPrior = &kl
		}
	}

	rows, err := store.DB().Query(
		`SELECT decision, step_json FROM provenance_log WHERE version_id = ? ORDER BY id ASC`, versionID,
	)
	if err != nil {
		return fmt.Errorf("query provenance: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var decision string
		var stepJSON []byte
		if err := rows.Scan(&decision, &stepJSON); err != nil {
			return fmt.Errorf("scan provenance: %w", err)
		}
		view.Decision = decision
		var sr logging.StepRecord
		if len(stepJSON) > 0 && json.Unmarshal(stepJSON, &sr) == nil {
			view.Steps = append(view.Steps, sr)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(w, view)
	}

	fmt.Fprintf(w, "Version:    %s\n", rec.VersionID)
	fmt.Fprintf(w, "Parent:     %s\n", orDash(rec.ParentID))
	fmt.Fprintf(w, "Created:    %s\n", view.CreatedAt)
	fmt.Fprintf(w, "Particles:  %d\n", view.Particles)
	fmt.Fprintf(w, "Mean:       %s\n", fmtOpt(view.Mean, "%.6f"))
	fmt.Fprintf(w, "Variance:   %s\n", fmtOpt(view.Variance, "%.6f"))
	fmt.Fprintf(w, "ESS:        %s\n", fmtOpt(view.ESS, "%.2f"))
	fmt.Fprintf(w, "KL(prior):  %s\n", fmtOpt(view.KLToPrior, "%.6f"))
	fmt.Fprintf(w, "Decision:   %s\n", orDash(view.Decision))
	fmt.Fprintf(w, "Weights:    %s\n", weightSummary(rec.Belief))
	for _, s := range view.Steps {
		fmt.Fprintf(w, "  %s: control=%.4f disturbance=%.4f ess_ratio=%.3f step_kl=%.4f gate=%s\n",
			s.TurnID, s.Control, s.Disturbance, s.ESSRatio, s.StepKL, orDash(s.GateAction))
	}
	return nil
}

// weightSummary reports the largest normalized weight and where it sits.
func weightSummary(b *belief.ParticleBelief) string {
	c := b.Copy()
	if err := c.NormalizeWeights(); err != nil {
		return err.Error()
	}
	values := c.Values()
	best := 0
	lws := c.LogWeights()
	for i, lw := range lws {
		if lw > lws[best] {
			best = i
		}
	}
	return fmt.Sprintf("max %.4f at value %.4f", math.Exp(lws[best]), values[best])
}

// #endregion detail-mode

// #region output

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtOpt(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion output
