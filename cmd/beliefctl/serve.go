package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielpatrickdp/belief-controller/internal/codec"
	"github.com/danielpatrickdp/belief-controller/internal/model"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

func init() {
	serveModelCmd.Flags().String("addr", "", "listen address (default: codec_addr from config)")
}

var serveModelCmd = &cobra.Command{
	Use:   "serve-model",
	Short: "Serve the configured Gaussian model over gRPC",
	Long:  "Expose log p(disturbance | particle, control) for the configured gain and sigma, for use with model kind \"remote\".",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.CodecAddr
		}
		logger := newLogger(cfg)

		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		srv := grpc.NewServer()
		codec.RegisterModelServer(srv, model.Gaussian{Gain: cfg.Model.Gain, Sigma: cfg.Model.Sigma})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			srv.GracefulStop()
		}()

		logger.Info("serving model", "addr", lis.Addr().String(), "gain", cfg.Model.Gain, "sigma", cfg.Model.Sigma)
		return srv.Serve(lis)
	},
}
