// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Cite walks every dataset's index tree in remote mode, collecting
// every discovered DOI exactly once, fetches each one's citation
// record from doi.org, optionally reindents it, and writes a combined
// bibtex file to outputPath ordered by the lexicographically smallest
// path id that referenced each DOI.
//
// A transport failure or non-2xx status for one DOI is recorded as a
// commented-out placeholder in its place in the output rather than
// aborting the run: spec.md's propagation policy demotes DOI fetch
// failures to a per-DOI status instead of a fatal action error.
func (cfg *Configuration) Cite(
	ctx context.Context,
	handleMessage Sender,
	outputPath string,
	force Force,
	filePermits FilePermits,
	downloadIndexPermits DownloadIndexPermits,
	downloadPermits DownloadPermits,
	doiPermits DownloadDoiPermits,
	doiTimeout *float64,
	pretty Pretty,
) error {
	remoteOnly := &Configuration{Directory: cfg.Directory}
	for _, ds := range cfg.Datasets {
		if ds.Mode == ModeDisabled {
			continue
		}
		clone := ds
		clone.Mode = ModeRemote
		remoteOnly.Datasets = append(remoteOnly.Datasets, clone)
	}

	d := DefaultTimeout
	if doiTimeout != nil {
		d = time.Duration(*doiTimeout * float64(time.Second))
	}
	client := &http.Client{Timeout: d}
	doiSem := semaphore.NewWeighted(int64(doiPermits))

	var mu sync.Mutex
	entries := make(map[Doi]*citationEntry)
	var wg sync.WaitGroup
	running := new(atomic.Bool)
	running.Store(true)

	// reportProgress forwards every message to the caller and, on a
	// DoiProgress{Success|Error}, rewrites the citation file to
	// outputPath so an interrupted run still leaves everything resolved
	// so far on disk instead of nothing at all.
	reportProgress := func(m Message) {
		handleMessage(m)
		if dp, ok := m.(DoiProgressMessage); ok && (dp.Status == DoiSuccess || dp.Status == DoiError) {
			mu.Lock()
			_ = writeCitations(outputPath, entries)
			mu.Unlock()
		}
	}

	onMessage := func(m Message) {
		if doiMsg, ok := m.(DoiMessage); ok {
			mu.Lock()
			entry, seen := entries[doiMsg.Value]
			if seen {
				entry.pathIds = append(entry.pathIds, doiMsg.PathId)
				mu.Unlock()
			} else {
				entries[doiMsg.Value] = &citationEntry{pathIds: []PathId{doiMsg.PathId}}
				mu.Unlock()
				handleMessage(DoiProgressMessage{Value: doiMsg.Value, Status: DoiStart})
				wg.Add(1)
				go func(doi Doi) {
					defer wg.Done()
					fetchCitation(ctx, client, doiSem, doi, bool(pretty), reportProgress, &mu, entries)
				}(doiMsg.Value)
			}
		}
		handleMessage(m)
	}

	if err := remoteOnly.Install(ctx, running, onMessage, force, Keep(false), DispatchDois(true),
		filePermits, downloadIndexPermits, downloadPermits, 1); err != nil {
		return err
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return writeCitations(outputPath, entries)
}

func fetchCitation(
	ctx context.Context,
	client *http.Client,
	doiSem *semaphore.Weighted,
	doi Doi,
	pretty bool,
	handleMessage Sender,
	mu *sync.Mutex,
	entries map[Doi]*citationEntry,
) {
	if err := doiSem.Acquire(ctx, 1); err != nil {
		recordCitationError(mu, entries, doi, err.Error())
		handleMessage(DoiProgressMessage{Value: doi, Status: DoiError, Text: err.Error()})
		return
	}
	defer doiSem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://doi.org/"+string(doi), nil)
	if err != nil {
		recordCitationError(mu, entries, doi, err.Error())
		handleMessage(DoiProgressMessage{Value: doi, Status: DoiError, Text: err.Error()})
		return
	}
	req.Header.Set("Accept", "application/x-bibtex; charset=utf-8")

	resp, err := client.Do(req)
	if err != nil {
		recordCitationError(mu, entries, doi, err.Error())
		handleMessage(DoiProgressMessage{Value: doi, Status: DoiError, Text: err.Error()})
		return
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		recordCitationError(mu, entries, doi, err.Error())
		handleMessage(DoiProgressMessage{Value: doi, Status: DoiError, Text: err.Error()})
		return
	}
	text := string(body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		recordCitationError(mu, entries, doi, text)
		handleMessage(DoiProgressMessage{Value: doi, Status: DoiError, Text: text})
		return
	}
	if pretty {
		text = prettifyBibtex(text)
	}

	mu.Lock()
	entries[doi].content = text
	mu.Unlock()
	handleMessage(DoiProgressMessage{Value: doi, Status: DoiSuccess, Text: text})
}

func recordCitationError(mu *sync.Mutex, entries map[Doi]*citationEntry, doi Doi, text string) {
	mu.Lock()
	entries[doi].content = "% " + text + "\n"
	mu.Unlock()
}
