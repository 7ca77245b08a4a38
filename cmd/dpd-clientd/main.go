// Command dpd-clientd subscribes to the master's per-node updates and
// materializes them into the local configuration file the worker watches.
// See spec.md §4.5.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/dpd/internal/bus"
	"github.com/loykin/dpd/internal/client"
	"github.com/loykin/dpd/internal/config"
	"github.com/loykin/dpd/internal/metrics"
)

func serveMetrics(listen string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(listen, mux); err != nil {
		log.Error("metrics server stopped", "err", err)
	}
}

func main() {
	var configFile string

	root := &cobra.Command{
		Use:   "dpd-clientd",
		Short: "subscribes to the master's updates and writes the local worker config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile)
		},
	}
	root.Flags().StringVar(&configFile, "config", "", "path to the dpd-clientd startup configuration file")
	_ = root.MarkFlagRequired("config")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(startupConfigPath string) error {
	var cfg config.ClientConfig
	if err := config.LoadRole(startupConfigPath, &cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := cfg.Log.Logger("client")

	nodeName, err := client.ExpandNodeName(cfg.NodeName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			log.Warn("metrics registration failed", "err", err)
		} else {
			go serveMetrics(cfg.Metrics.Listen, log)
		}
	}

	conn, err := bus.Connect(cfg.Bus.URL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	c := client.New(nodeName, cfg.ConfigFile, conn, log)
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("client exited", "err", err)
		return err
	}
	log.Info("shutting down")
	return nil
}
