// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bodaay/datasetinstaller/internal/server"
	"github.com/bodaay/datasetinstaller/pkg/datasets"
)

func newServeCmd(ro *RootOpts) *cobra.Command {
	var (
		addr string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local HTTP+WebSocket status server",
		Long: `Starts a status server exposing:
  POST   /api/jobs       start an install/size/cite job
  GET    /api/jobs/{id}  job status snapshot
  GET    /ws             WebSocket stream of job progress

The server has no bundled web UI; it is the seam an external dashboard
would consume.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := server.DefaultConfig()
			cfg.Addr = addr
			cfg.Port = port
			cfg.FilePermits = datasets.FilePermits(ro.FilePermits)
			cfg.DownloadIndexPermits = datasets.DownloadIndexPermits(ro.DownloadIndexPermits)
			cfg.DownloadPermits = datasets.DownloadPermits(ro.DownloadPermits)
			cfg.DecodePermits = datasets.DecodePermits(ro.DecodePermits)
			cfg.DoiPermits = datasets.DownloadDoiPermits(ro.DoiPermits)

			srv := server.New(cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			fmt.Printf("datasetinstaller status server on %s:%d\n", addr, port)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1", "Address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8090, "Port to listen on")

	return cmd
}
