// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package cli implements the datasetinstaller command-line tool.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bodaay/datasetinstaller/internal/tui"
	"github.com/bodaay/datasetinstaller/pkg/datasets"
)

// RootOpts holds global CLI options shared across subcommands.
type RootOpts struct {
	Config  string
	JSONOut bool
	Quiet   bool
	Verbose bool

	FilePermits          int
	DownloadIndexPermits int
	DownloadPermits      int
	DecodePermits        int
	DoiPermits           int
}

// Execute runs the CLI with the given version string.
func Execute(version string) error {
	ro := &RootOpts{}
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	root := &cobra.Command{
		Use:           "datasetinstaller",
		Short:         "Install, size, and cite datasets described by a directory of per-folder indexes",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.PersistentFlags().StringVar(&ro.Config, "config", "datasetinstaller.toml", "Path to the configuration file")
	root.PersistentFlags().BoolVar(&ro.JSONOut, "json", false, "Emit newline-delimited JSON messages instead of a live terminal UI")
	root.PersistentFlags().BoolVarP(&ro.Quiet, "quiet", "q", false, "Suppress progress output")
	root.PersistentFlags().BoolVarP(&ro.Verbose, "verbose", "v", false, "Verbose logging")
	root.PersistentFlags().IntVar(&ro.FilePermits, "file-permits", 64, "Maximum concurrently open local files")
	root.PersistentFlags().IntVar(&ro.DownloadIndexPermits, "download-index-permits", 8, "Maximum concurrent index downloads")
	root.PersistentFlags().IntVar(&ro.DownloadPermits, "download-permits", 4, "Maximum concurrent data downloads")
	root.PersistentFlags().IntVar(&ro.DecodePermits, "decode-permits", 4, "Maximum concurrent decode tasks")
	root.PersistentFlags().IntVar(&ro.DoiPermits, "doi-permits", 4, "Maximum concurrent DOI lookups")

	root.AddCommand(newInstallCmd(ctx, ro))
	root.AddCommand(newSizeCmd(ctx, ro))
	root.AddCommand(newCiteCmd(ctx, ro))
	root.AddCommand(newConfigCmd())
	root.AddCommand(newServeCmd(ro))
	root.AddCommand(newVersionCmd(version))
	root.SetHelpCommand(&cobra.Command{Use: "help", Hidden: true})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func newInstallCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	var (
		force  bool
		keep   bool
		dois   bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download and, for raw-mode datasets, decode every non-disabled dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := datasets.LoadConfiguration(ro.Config)
			if err != nil {
				return err
			}

			running := new(atomic.Bool)
			running.Store(true)
			handle, closeHandle := progressHandler(ro)
			defer closeHandle()

			if dryRun {
				return cfg.CalculateSize(ctx, running, handle, datasets.Force(force),
					datasets.FilePermits(ro.FilePermits), datasets.DownloadIndexPermits(ro.DownloadIndexPermits))
			}

			return cfg.Install(ctx, running, handle,
				datasets.Force(force), datasets.Keep(keep), datasets.DispatchDois(dois),
				datasets.FilePermits(ro.FilePermits), datasets.DownloadIndexPermits(ro.DownloadIndexPermits),
				datasets.DownloadPermits(ro.DownloadPermits), datasets.DecodePermits(ro.DecodePermits))
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-fetch and re-verify every file, ignoring local state")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep compressed artifacts after decoding raw-mode resources")
	cmd.Flags().BoolVar(&dois, "dois", false, "Also discover and report DOIs found while walking")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be installed without downloading or decoding any data")

	return cmd
}

func newSizeCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "size",
		Short: "Report remote and locally-present byte counts for every non-disabled dataset, without downloading data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := datasets.LoadConfiguration(ro.Config)
			if err != nil {
				return err
			}

			running := new(atomic.Bool)
			running.Store(true)
			handle, closeHandle := progressHandler(ro)
			defer closeHandle()

			return cfg.CalculateSize(ctx, running, handle, datasets.Force(force),
				datasets.FilePermits(ro.FilePermits), datasets.DownloadIndexPermits(ro.DownloadIndexPermits))
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-fetch every index, ignoring local state")

	return cmd
}

func newCiteCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	var (
		output string
		force  bool
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "cite",
		Short: "Collect every DOI referenced by a dataset's index tree and write a combined bibtex file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return fmt.Errorf("missing required --output")
			}

			cfg, _, err := datasets.LoadConfiguration(ro.Config)
			if err != nil {
				return err
			}

			handle, closeHandle := progressHandler(ro)
			defer closeHandle()

			return cfg.Cite(ctx, handle, output, datasets.Force(force),
				datasets.FilePermits(ro.FilePermits), datasets.DownloadIndexPermits(ro.DownloadIndexPermits),
				datasets.DownloadPermits(ro.DownloadPermits), datasets.DownloadDoiPermits(ro.DoiPermits),
				nil, datasets.Pretty(pretty))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Path to write the combined bibtex file")
	cmd.Flags().BoolVar(&force, "force", false, "Re-fetch every index, ignoring local state")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Reindent each fetched bibtex record")

	return cmd
}

// progressHandler builds a datasets.Sender per the --json/--quiet/live
// selection and a matching cleanup function.
func progressHandler(ro *RootOpts) (datasets.Sender, func()) {
	switch {
	case ro.Quiet:
		return func(datasets.Message) {}, func() {}
	case ro.JSONOut:
		return jsonProgress(os.Stdout), func() {}
	default:
		renderer := tui.NewLiveRenderer()
		return renderer.Handler(), renderer.Close
	}
}

// jsonProgress returns a JSON-lines message handler.
func jsonProgress(w *os.File) datasets.Sender {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return func(m datasets.Message) {
		_ = enc.Encode(map[string]any{"message": m})
	}
}
