package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/cognicore/kwtune/internal/batch"
)

func newBatchCmd(f *cliFlags) *cobra.Command {
	var (
		input       string
		output      string
		workers     int
		enforce     bool
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Optimize every manuscript of a JSONL file",
		Long: `batch reads one JSON object per line ({"id", "keyword", "text", "config"})
and writes one result per line. Items that fail are reported in their
result line and do not stop the batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return errors.New("--input required")
			}
			ctx := cmd.Context()
			logger := f.logger(cmd.ErrOrStderr())
			engine, setup, cleanup, err := buildEngine(ctx, f, logger, enforce)
			if err != nil {
				return err
			}
			defer cleanup()

			if metricsAddr != "" {
				stop, err := serveMetrics(metricsAddr, setup.registry, logger)
				if err != nil {
					return err
				}
				defer stop()
			}

			items, err := batch.LoadFromJSONL(input, logger)
			if err != nil {
				return err
			}
			if workers <= 0 {
				workers = setup.comp.Settings.Workers
			}
			runner := &batch.Runner{
				Engine:  engine,
				Base:    setup.baseConfig(),
				Workers: workers,
				Logger:  logger,
			}
			logger.Info("batch started", "items", len(items), "workers", workers)
			outputs, err := runner.Run(ctx, items)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				fh, err := os.Create(output)
				if err != nil {
					return err
				}
				defer fh.Close()
				w = fh
			}
			if err := batch.WriteJSONL(w, outputs); err != nil {
				return fmt.Errorf("write results: %w", err)
			}

			failed := 0
			for _, o := range outputs {
				if !o.Converged {
					failed++
				}
			}
			logger.Info("batch finished", "items", len(outputs), "not_converged", failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "JSONL file of manuscripts (required)")
	cmd.Flags().StringVar(&output, "output", "", "JSONL result file (default stdout)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel manuscripts (default from settings)")
	cmd.Flags().BoolVar(&enforce, "enforce-structure", false, "Insert missing template sections before tuning")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	return cmd
}

// serveMetrics exposes reg on addr until stop is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
