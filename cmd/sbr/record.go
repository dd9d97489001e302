package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/INLOpen/sbr/config"
	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/hooks"
	"github.com/INLOpen/sbr/hooks/listeners"
	"github.com/INLOpen/sbr/recorder"
	"github.com/INLOpen/sbr/server"
	"github.com/INLOpen/sbr/sources"
	"github.com/spf13/cobra"
)

type recordOptions struct {
	out        string
	name       string
	controlled bool
	debug      bool
}

func newRecordCmd(c *cli) *cobra.Command {
	var opts recordOptions
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record JSON lines from stdin into a recording file",
		Long: `Reads one JSON object per line from stdin and records it:

  {"source": "/SmartDashboard/speed", "type": "Number", "value": 1.5}
  {"marker": "Auto start", "description": "", "importance": "HIGH"}

The type may be omitted for builtin types. Values published on the recording
control source start and stop the recorder when --controlled is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd.Context(), c, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "recording directory (defaults to recorder.dir)")
	cmd.Flags().StringVar(&opts.name, "name", "", "file name format, e.g. match-${time} (defaults to recorder.file_name_format)")
	cmd.Flags().BoolVar(&opts.controlled, "controlled", false, "wait for the recording control source instead of starting immediately")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "serve metrics and profiles on debug.listen_address")
	return cmd
}

// recordSink publishes samples on the live layer, where the recorder captures
// them, and hands markers to the recorder.
type recordSink struct {
	layer *sources.MemoryLayer
	rec   *recorder.Recorder
}

func (s recordSink) Publish(sourceID, typeTag string, value core.TypedValue) bool {
	return s.layer.Publish(sourceID, typeTag, value)
}

func (s recordSink) AddMarker(name, description string, importance core.Importance) error {
	return s.rec.AddMarker(name, description, importance)
}

func outlierRules(ranges []config.OutlierRange) []listeners.OutlierRule {
	rules := make([]listeners.OutlierRule, 0, len(ranges))
	for _, r := range ranges {
		rules = append(rules, listeners.OutlierRule{
			SourceID:   r.SourceID,
			Thresholds: listeners.Thresholds{Min: r.Min, Max: r.Max},
		})
	}
	return rules
}

func runRecord(ctx context.Context, c *cli, opts recordOptions, in io.Reader, out io.Writer) error {
	cfg := c.cfg
	logger := c.logger
	dir := cfg.Recorder.Dir
	if opts.out != "" {
		dir = opts.out
	}
	format := cfg.Recorder.FileNameFormat
	if opts.name != "" {
		format = opts.name
	}
	debug := cfg.Debug.Enabled || opts.debug

	layer := sources.NewMemoryLayer(logger)
	hookManager := hooks.NewHookManager(logger)
	defer hookManager.Stop()

	rec := recorder.New(recorder.Options{
		Registry:         c.registry,
		Sources:          layer,
		Hooks:            hookManager,
		Logger:           logger,
		Tracer:           c.tracer,
		Metrics:          recorder.NewMetrics(debug, "sbr_recorder_"),
		Dir:              dir,
		FileNameFormat:   format,
		FlushInterval:    config.ParseDuration(cfg.Recorder.FlushInterval, recorder.DefaultFlushInterval, logger),
		MinFreeDiskBytes: cfg.Recorder.MinFreeDiskBytes,
		LockFile:         cfg.Recorder.LockFile,
		LockTimeout:      config.ParseDuration(cfg.Recorder.LockTimeout, recorder.DefaultLockTimeout, logger),
	})

	// --- Register Hooks ---
	hookManager.Register(hooks.EventPreRecord, listeners.NewMarkerGeneratorListener(logger, rec, cfg.Markers.EventsPrefix))
	hookManager.Register(hooks.EventOnSourceCreate, listeners.NewCardinalityAlerterListener(logger, cfg.Alerts.CardinalityLimit))
	hookManager.Register(hooks.EventPostFlush, listeners.NewFlushStatsListener(logger))
	if len(cfg.Alerts.Outliers) > 0 {
		hookManager.Register(hooks.EventPostRecord, listeners.NewOutlierDetectionListener(logger, outlierRules(cfg.Alerts.Outliers)))
	}
	if opts.controlled {
		controller := listeners.NewRecorderController(rec, listeners.RecorderControllerOptions{Logger: logger})
		unsubscribe := layer.Subscribe(controller)
		defer unsubscribe()
	}
	// --- End Register Hooks ---

	if debug {
		debugSrv, err := server.NewDebugServer(cfg.Debug, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := debugSrv.Start(); err != nil {
				logger.Error("Failed to start debug server", "error", err)
			}
		}()
		defer debugSrv.Stop()

		collector := server.NewSystemCollector(server.SystemCollectorOptions{
			DiskPath: dir,
			Interval: config.ParseDuration(cfg.Debug.SystemInterval, 15*time.Second, logger),
			Global:   true,
			Logger:   logger,
		})
		collector.Start()
		defer collector.Stop()
	}

	if !opts.controlled {
		if err := rec.Start(); err != nil {
			return fmt.Errorf("failed to start recorder: %w", err)
		}
	}

	type result struct {
		stats readStats
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, err := readInputs(in, recordSink{layer: layer, rec: rec}, logger)
		done <- result{stats, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		logger.Info("Interrupted, finishing recording")
	}

	if err := rec.Close(); err != nil && res.err == nil {
		res.err = fmt.Errorf("failed to finish recording: %w", err)
	}
	if file := rec.File(); file != "" {
		entries := 0
		if r := rec.Recording(); r != nil {
			entries = r.Len()
		}
		fmt.Fprintf(out, "%s\t%d entries\n", file, entries)
	}
	logger.Info("Input finished", "samples", res.stats.Samples, "markers", res.stats.Markers,
		"dropped", res.stats.Dropped, "invalid", res.stats.Invalid)
	return res.err
}
