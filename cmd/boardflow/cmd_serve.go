package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/retailops/boardflow/server"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (flow catalog, SSE stream, metrics)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", server.DefaultAddr, "listen address")
}

func runServe(cmd *cobra.Command, _ []string) error {
	engine, err := buildEngine()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := buildLogger()
	srv := server.New(engine.Orchestrator(), engine.Registry(), engine.Gate(), engine.Store(), func(o *server.Options) {
		o.Addr = flagAddr
		o.Logger = logger
	})
	return srv.Start(ctx)
}
