package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baekenough/kafka-lens-sub000/internal/api"
	"github.com/baekenough/kafka-lens-sub000/internal/config"
	"github.com/baekenough/kafka-lens-sub000/internal/kafka"
	"github.com/baekenough/kafka-lens-sub000/internal/logging"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logging.Init(false)

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:           "kafkalens",
		Short:         "KafkaLens exposes read-only Kafka cluster state to an operator dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(verbose)
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "version: %s\n", Version); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(out, "commit:  %s\n", GitCommit); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(out, "date:    %s\n", BuildDate); err != nil {
				return err
			}
			return nil
		},
	}
}

type serveOptions struct {
	configPath string
	listen     string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the monitoring API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", config.DefaultFileName, "Path to the configuration file")
	flags.StringVar(&opts.listen, "listen", "", "Listen address (overrides the config file)")

	return cmd
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	listen := cfg.Listen
	if opts.listen != "" {
		listen = opts.listen
	}

	registry := kafka.NewRegistry(cfg, cfg.AdminTimeout.Value())
	defer registry.EvictAll()

	gateway := kafka.NewGateway(registry, cfg.AdminTimeout.Value())
	sampler := kafka.NewSampler(registry, cfg.PollTimeout.Value())

	handler := api.NewHandler(cfg, registry, gateway, sampler)
	server := &http.Server{
		Addr:    listen,
		Handler: api.NewRouter(handler),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving monitoring API", "listen", listen, "clusters", len(cfg.Clusters))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type checkOptions struct {
	configPath string
	timeout    time.Duration
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Test connectivity to every configured cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", config.DefaultFileName, "Path to the configuration file")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Per-cluster probe timeout (overrides the config file)")

	return cmd
}

func runCheck(cmd *cobra.Command, opts checkOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	timeout := cfg.AdminTimeout.Value()
	if opts.timeout > 0 {
		timeout = opts.timeout
	}

	registry := kafka.NewRegistry(cfg, timeout)
	defer registry.EvictAll()

	out := cmd.OutOrStdout()
	failed := 0
	for _, desc := range cfg.All() {
		ok, message := registry.TestConnection(cmd.Context(), desc.ID)
		if ok {
			if _, err := fmt.Fprintf(out, "%-20s ok\n", desc.ID); err != nil {
				return err
			}
			continue
		}

		failed++
		if _, err := fmt.Fprintf(out, "%-20s FAILED: %s\n", desc.ID, message); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d clusters unreachable", failed, len(cfg.Clusters))
	}
	return nil
}
