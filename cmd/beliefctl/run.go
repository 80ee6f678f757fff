package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/danielpatrickdp/belief-controller/internal/belief"
	"github.com/danielpatrickdp/belief-controller/internal/codec"
	"github.com/danielpatrickdp/belief-controller/internal/config"
	"github.com/danielpatrickdp/belief-controller/internal/metrics"
	"github.com/danielpatrickdp/belief-controller/internal/model"
	"github.com/danielpatrickdp/belief-controller/internal/orchestrator"
	"github.com/danielpatrickdp/belief-controller/internal/replay"
	"github.com/danielpatrickdp/belief-controller/internal/update"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func init() {
	runCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address (e.g. :9090)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Feed observations from stdin",
	Long:  "Read one \"control disturbance\" pair per line and run each through update, gate, commit, and eval.",
	Example: `
# Interactive session on the default store
beliefctl run

# Use a remote model service and expose metrics
beliefctl run --config belief.yaml --metrics-addr :9090
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
			cfg.Metrics.Addr = addr
		}
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		models, closeModel, err := modelFactory(cfg)
		if err != nil {
			return err
		}
		defer closeModel()

		reg := prometheus.NewRegistry()
		recorder := metrics.New(reg)
		if cfg.Metrics.Addr != "" {
			srv := &http.Server{
				Addr:              cfg.Metrics.Addr,
				Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server", "err", err)
				}
			}()
			defer srv.Close()
			logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
		}

		replayConfig := replay.ReplayConfig{
			UpdateConfig: cfg.UpdateConfig(),
			GateConfig:   cfg.GateConfig(),
			EvalConfig:   cfg.EvalConfig(),
		}
		orch, err := orchestrator.NewOrchestrator(store, models, nil, replayConfig,
			orchestrator.WithRecorder(recorder),
			orchestrator.WithLogger(logger),
		)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Belief controller ready.")
		fmt.Fprintf(out, "  DB: %s | Model: %s\n", cfg.DBPath, cfg.Model.Kind)
		fmt.Fprintln(out, "Enter \"control disturbance\" (or 'quit' to exit):")

		scanner := bufio.NewScanner(cmd.InOrStdin())
		turnNum := 0
		for ctx.Err() == nil {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "quit" || line == "exit" {
				break
			}

			turnNum++
			step, err := parseStep(fmt.Sprintf("turn-%d", turnNum), line)
			if err != nil {
				fmt.Fprintf(out, "  %v\n", err)
				turnNum--
				continue
			}

			res, err := orch.Turn(ctx, step)
			if err != nil {
				logger.Error("turn failed", "turn", step.TurnID, "err", err)
				continue
			}
			m := res.Result.UpdateMetrics
			fmt.Fprintf(out, "[%s] decision=%s version=%s mean=%.4f var=%.4f ess=%.1f\n",
				step.TurnID, res.Result.Action, shortID(res.ActiveVersionID), m.Mean, m.Variance, m.ESS)
		}
		return scanner.Err()
	},
}

// parseStep reads "control disturbance" from one input line.
func parseStep(turnID, line string) (update.Step, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return update.Step{}, fmt.Errorf("expected \"control disturbance\", got %q", line)
	}
	control, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return update.Step{}, fmt.Errorf("parse control: %w", err)
	}
	disturbance, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return update.Step{}, fmt.Errorf("parse disturbance: %w", err)
	}
	return update.Step{TurnID: turnID, Control: control, Disturbance: disturbance}, nil
}

// modelFactory builds the configured observation model and its cleanup.
func modelFactory(cfg config.Config) (orchestrator.ModelFactory, func(), error) {
	switch cfg.Model.Kind {
	case "remote":
		client, err := codec.NewCodecClient(cfg.CodecAddr)
		if err != nil {
			return nil, nil, err
		}
		factory := func(ctx context.Context) belief.Model {
			return client.Model(ctx, cfg.Model.Timeout)
		}
		return factory, func() { client.Close() }, nil
	default:
		g := model.Gaussian{Gain: cfg.Model.Gain, Sigma: cfg.Model.Sigma}
		return orchestrator.StaticModel(g), func() {}, nil
	}
}
