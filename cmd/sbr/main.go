package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/INLOpen/sbr/adapters"
	"github.com/INLOpen/sbr/config"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
)

// cli holds the state shared by every subcommand once the root command has
// loaded the configuration.
type cli struct {
	configPath string
	logLevel   string

	cfg           *config.Config
	logger        *slog.Logger
	logCloser     io.Closer
	tracer        trace.Tracer
	tracerCleanup func()
	registry      *adapters.Registry
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "sbr",
		Short:         "Record, replay and convert telemetry recordings",
		Long:          `sbr captures timestamped values published by a live system into .sbr recording files, replays them at their original pace and converts them to other formats.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.teardown()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "sbr.yaml", "path to the configuration file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override the configured log level (debug|info|warn|error)")

	root.AddCommand(
		newRecordCmd(c),
		newPlayCmd(c),
		newInfoCmd(c),
		newExportCmd(c),
		newArchiveCmd(c),
	)
	return root
}

func (c *cli) setup() error {
	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", c.configPath, err)
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	logger, closer, err := createLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	tp, cleanup, err := initTracerProvider(cfg.Tracing, logger)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return fmt.Errorf("failed to initialize tracer provider: %w", err)
	}

	c.cfg = cfg
	c.logger = logger
	c.logCloser = closer
	c.tracer = tp.Tracer("github.com/INLOpen/sbr")
	c.tracerCleanup = cleanup
	c.registry = adapters.NewDefaultRegistry(logger)
	return nil
}

func (c *cli) teardown() {
	if c.registry != nil {
		if err := c.registry.Close(); err != nil {
			c.logger.Warn("Failed to close type adapters", "error", err)
		}
	}
	if c.tracerCleanup != nil {
		c.tracerCleanup()
	}
	if c.logCloser != nil {
		c.logCloser.Close()
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "sbr:", err)
		stop()
		os.Exit(1)
	}
}
