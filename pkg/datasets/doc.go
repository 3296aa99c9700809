// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

/*
Package datasets installs, sizes, and cites datasets described by a
recursive remote index.

A dataset is a tree of directories and files hosted under a base URL.
Every file carries an expected raw size and a SHA3-224 digest, and is
offered in one or more compression encodings, each with its own size
and digest. A Configuration declares a set of datasets and the local
directory they install into; callers drive one of three actions:

  - Install: download files and, in raw mode, decompress them.
  - CalculateSize: estimate remote and local footprints without
    transferring file bodies.
  - Cite: walk the index tree, collect DOIs, fetch citation records,
    and write a consolidated citation file.

# Quick start

	cfg, _, err := datasets.LoadConfiguration("datasets.toml")
	if err != nil {
		log.Fatal(err)
	}
	running := new(atomic.Bool)
	running.Store(true)
	err = cfg.Install(context.Background(), running, func(m datasets.Message) {
		fmt.Printf("%#v\n", m)
	}, datasets.Force(false), datasets.Keep(false), datasets.DispatchDois(false),
		datasets.FilePermits(64), datasets.DownloadIndexPermits(16),
		datasets.DownloadPermits(8), datasets.DecodePermits(4))

# Concurrency

Every node of the walk publishes to a single bounded message channel
drained by the driver. The channel is closed only after every walker
has returned, so every DirectoryScanned report is delivered before the
action returns its result. Four independent
semaphores throttle open file handles, index fetches, data downloads,
and decompressions; a shared *atomic.Bool cancellation flag is cloned
into every task.
*/
package datasets
