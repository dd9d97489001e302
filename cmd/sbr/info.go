package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/INLOpen/sbr/recording"
	"github.com/INLOpen/sbr/sbrfile"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	headerColor = color.New(color.Bold, color.Underline)
	errorColor  = color.New(color.FgRed)
)

func newInfoCmd(c *cli) *cobra.Command {
	var perSource bool
	cmd := &cobra.Command{
		Use:   "info FILE...",
		Short: "Summarize recordings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.Context(), c, args, perSource, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&perSource, "sources", false, "list the sampling intervals of every source")
	return cmd
}

func formatMillis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func runInfo(ctx context.Context, c *cli, paths []string, perSource bool, out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	headerColor.Fprintln(tw, "FILE\tENTRIES\tFRAMES\tMARKERS\tSOURCES\tDURATION\tP50 INTERVAL\tP99 INTERVAL")

	failed := 0
	type detail struct {
		path  string
		stats recording.Stats
	}
	var details []detail
	for _, path := range paths {
		rec, err := sbrfile.Load(ctx, path, c.registry, sbrfile.WithLogger(c.logger), sbrfile.WithTracer(c.tracer))
		if err == nil {
			var stats recording.Stats
			if stats, err = rec.ComputeStats(); err == nil {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\t%.1fms\t%.1fms\n",
					path, stats.Entries, stats.Frames, stats.Markers, len(stats.Sources),
					formatMillis(stats.Duration), stats.P50, stats.P99)
				details = append(details, detail{path, stats})
				continue
			}
		}
		failed++
		c.logger.Error("Failed to read recording", "path", path, "error", err)
		errorColor.Fprintf(tw, "%s\terror: %v\n", path, err)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if perSource {
		for _, d := range details {
			fmt.Fprintln(out)
			headerColor.Fprintln(out, d.path)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tSAMPLES\tP50\tP90\tP99")
			for _, s := range d.stats.Sources {
				fmt.Fprintf(tw, "%s\t%d\t%.1fms\t%.1fms\t%.1fms\n", s.SourceID, s.Samples, s.P50, s.P90, s.P99)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d recordings could not be read", failed, len(paths))
	}
	return nil
}
