// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"context"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Install downloads index and data files for every non-disabled
// dataset, decompressing raw-mode Brotli artifacts as they complete.
// handleMessage is invoked for every message a walker produces; it is
// called synchronously from a single goroutine, so DirectoryScanned
// records are always delivered before the terminal error (if any) is
// returned. Subdirectories are walked concurrently with their parent,
// so messages from a directory and its children may interleave.
func (cfg *Configuration) Install(
	ctx context.Context,
	running *atomic.Bool,
	handleMessage Sender,
	force Force,
	keep Keep,
	dispatchDois DispatchDois,
	filePermits FilePermits,
	downloadIndexPermits DownloadIndexPermits,
	downloadPermits DownloadPermits,
	decodePermits DecodePermits,
) error {
	return cfg.walkAll(ctx, running, handleMessage, force, keep, dispatchDois, false,
		filePermits, downloadIndexPermits, downloadPermits, decodePermits, true)
}

// walkAll is the shared driver behind Install and CalculateSize: it
// builds the four permit pools, spawns one walker per non-disabled
// dataset, and drains their combined message stream to completion
// before returning the first error observed.
func (cfg *Configuration) walkAll(
	parentCtx context.Context,
	running *atomic.Bool,
	handleMessage Sender,
	force Force,
	keep Keep,
	dispatchDois DispatchDois,
	calculateSize CalculateSizeFlag,
	filePermits FilePermits,
	downloadIndexPermits DownloadIndexPermits,
	downloadPermits DownloadPermits,
	decodePermits DecodePermits,
	dispatchTasks bool,
) error {
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	pathRoot := PathRoot(cfg.Directory)
	if err := os.MkdirAll(string(pathRoot), 0o755); err != nil {
		return &IOError{Op: "create", Path: string(pathRoot), Err: err}
	}

	fileWeight := int64(filePermits) - 1
	if fileWeight < 1 {
		fileWeight = 1
	}
	fileSem := semaphore.NewWeighted(fileWeight)
	downloadIndexSem := semaphore.NewWeighted(int64(downloadIndexPermits))
	downloadSem := semaphore.NewWeighted(int64(downloadPermits))
	decodeSem := semaphore.NewWeighted(int64(decodePermits))

	messages := make(chan Message, 64)
	errCh := make(chan error, 1)

	eg, egCtx := errgroup.WithContext(ctx)
	go func() {
		<-egCtx.Done()
		running.Store(false)
	}()

	for i := range cfg.Datasets {
		ds := cfg.Datasets[i]
		mode, ok := ds.Mode.ToInstallable()
		if !ok {
			continue
		}
		server := NewServer(ds.URL, ds.Timeout)
		p := &walkParams{
			server:           server,
			pathRoot:         pathRoot,
			force:            force,
			keep:             keep,
			dispatchDois:     dispatchDois,
			calculateSize:    calculateSize,
			mode:             mode,
			dispatchTasks:    dispatchTasks,
			fileSem:          fileSem,
			downloadIndexSem: downloadIndexSem,
			downloadSem:      downloadSem,
			decodeSem:        decodeSem,
			send:             func(m Message) { messages <- m },
			running:          running,
		}
		rootId := PathId(ds.Name)
		eg.Go(func() error { return walkDirectory(egCtx, p, rootId) })
	}

	go func() {
		errCh <- eg.Wait()
		close(messages)
	}()

	for m := range messages {
		handleMessage(m)
	}
	return <-errCh
}
