package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/INLOpen/sbr/convert"
	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/sbrfile"
	"github.com/INLOpen/sbr/sys"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type exportOptions struct {
	format          string
	out             string
	convertMetadata bool
	window          int64
	jobs            int
}

func newExportCmd(c *cli) *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export FILE...",
		Short: "Convert recordings to another format",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("format") {
				opts.format = c.cfg.Export.Format
			}
			if !cmd.Flags().Changed("convert-metadata") {
				opts.convertMetadata = c.cfg.Export.ConvertMetadata
			}
			if !cmd.Flags().Changed("window") {
				opts.window = c.cfg.Export.TimeWindow
			}
			if !cmd.Flags().Changed("jobs") {
				opts.jobs = c.cfg.Export.Concurrency
			}
			return runExport(cmd.Context(), c, args, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "csv", "output format (defaults to export.format)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output directory (defaults to next to each recording)")
	cmd.Flags().BoolVar(&opts.convertMetadata, "convert-metadata", false, "include recorder metadata sources")
	cmd.Flags().Int64Var(&opts.window, "window", convert.DefaultTimeWindow, "row width in milliseconds")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 4, "number of files converted concurrently")
	return cmd
}

// outputPath replaces the recording suffix of src with ext, optionally moving
// the file into dir.
func outputPath(src, dir, ext string) string {
	base := src
	for _, suffix := range []string{core.ArchiveFileSuffix, core.RecordingFileSuffix} {
		if strings.HasSuffix(base, suffix) {
			base = strings.TrimSuffix(base, suffix)
			break
		}
	}
	if dir != "" {
		base = filepath.Join(dir, filepath.Base(base))
	}
	return base + ext
}

// forEachFile runs fn for every path with at most jobs in flight. Results are
// printed as they complete.
func forEachFile(ctx context.Context, paths []string, jobs int, out io.Writer, fn func(ctx context.Context, path string) (string, error)) error {
	if jobs <= 0 {
		jobs = 1
	}
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			line, err := fn(ctx, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			mu.Lock()
			fmt.Fprintln(out, line)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func runExport(ctx context.Context, c *cli, paths []string, opts exportOptions, out io.Writer) error {
	conv, err := convert.NewDefaultRegistry(c.logger).Lookup(opts.format)
	if err != nil {
		return err
	}
	if opts.out != "" {
		if err := os.MkdirAll(opts.out, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", opts.out, err)
		}
	}
	settings := convert.Settings{ConvertMetadata: opts.convertMetadata, TimeWindow: opts.window}

	return forEachFile(ctx, paths, opts.jobs, out, func(ctx context.Context, path string) (string, error) {
		rec, err := sbrfile.Load(ctx, path, c.registry, sbrfile.WithLogger(c.logger), sbrfile.WithTracer(c.tracer))
		if err != nil {
			return "", err
		}
		dst := outputPath(path, opts.out, conv.Extension())
		if err := sys.WriteFileAtomic(dst, func(w io.Writer) error {
			return conv.Export(rec, w, settings)
		}); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", dst, err)
		}
		c.logger.Info("Recording exported", "path", path, "output", dst, "format", conv.Format())
		return dst, nil
	})
}
