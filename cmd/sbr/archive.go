package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/sbrfile"
	"github.com/spf13/cobra"
)

type archiveOptions struct {
	compression string
	out         string
	jobs        int
}

func newArchiveCmd(c *cli) *cobra.Command {
	var opts archiveOptions
	cmd := &cobra.Command{
		Use:   "archive FILE...",
		Short: "Compress recordings into .sbrz archives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("compression") {
				opts.compression = c.cfg.Archive.Compression
			}
			if !cmd.Flags().Changed("jobs") {
				opts.jobs = c.cfg.Export.Concurrency
			}
			return runArchive(cmd.Context(), c, args, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.compression, "compression", "c", "zstd", "none, snappy, lz4 or zstd (defaults to archive.compression)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output directory (defaults to next to each recording)")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 4, "number of files compressed concurrently")
	return cmd
}

func runArchive(ctx context.Context, c *cli, paths []string, opts archiveOptions, out io.Writer) error {
	ct, err := core.ParseCompressionType(opts.compression)
	if err != nil {
		return err
	}
	if opts.out != "" {
		if err := os.MkdirAll(opts.out, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", opts.out, err)
		}
	}
	return forEachFile(ctx, paths, opts.jobs, out, func(ctx context.Context, path string) (string, error) {
		dst := outputPath(path, opts.out, core.ArchiveFileSuffix)
		if err := sbrfile.Archive(ctx, path, dst, ct, sbrfile.WithLogger(c.logger), sbrfile.WithTracer(c.tracer)); err != nil {
			return "", err
		}
		return dst, nil
	})
}
