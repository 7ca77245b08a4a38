// Command dpd-workerd runs the supervisor tick loop against a node's local
// configuration file. See spec.md §4.1/§4.2.
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

	"github.com/loykin/dpd/internal/config"
	"github.com/loykin/dpd/internal/metrics"
	"github.com/loykin/dpd/internal/worker"
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
		Use:   "dpd-workerd",
		Short: "supervises the processes declared in a node's local configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile)
		},
	}
	root.Flags().StringVar(&configFile, "config", "", "path to the dpd-workerd startup configuration file")
	_ = root.MarkFlagRequired("config")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(startupConfigPath string) error {
	var cfg config.WorkerConfig
	if err := config.LoadRole(startupConfigPath, &cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := cfg.Log.Logger("worker")

	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			log.Warn("metrics registration failed", "err", err)
		} else {
			go serveMetrics(cfg.Metrics.Listen, log)
		}
	}

	w := worker.New(cfg.ConfigFile, log)
	if err := w.Bootstrap(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("worker exited", "err", err)
		return err
	}
	log.Info("shutting down")
	return nil
}
