// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/semaphore"
)

const testHash56 = "00000000000000000000000000000000000000000000000000000000"

func TestWalkDirectoryCalculateSizeAcrossSubdirectories(t *testing.T) {
	rootIndex := `{
		"version": {"major": 1, "minor": 0, "patch": 0},
		"directories": ["sub"],
		"files": [
			{
				"name": "root.bin",
				"size": 20,
				"hash": "` + testHash56 + `",
				"compressions": [{"type": "none", "suffix": ""}],
				"properties": {"type": "imu"}
			}
		],
		"other_files": []
	}`
	subIndex := `{
		"version": {"major": 1, "minor": 0, "patch": 0},
		"directories": [],
		"files": [],
		"other_files": [
			{
				"name": "other.bin",
				"size": 10,
				"hash": "` + testHash56 + `",
				"compressions": [{"type": "none", "suffix": ""}]
			}
		]
	}`

	mux := http.NewServeMux()
	mux.HandleFunc("/-index.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rootIndex))
	})
	mux.HandleFunc("/sub/-index.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(subIndex))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	server := newTestRemoteServer(t, ts.URL)
	dir := t.TempDir()

	send, msgs := collectMessages()
	running := atomic.Bool{}
	running.Store(true)

	p := &walkParams{
		server:           server,
		pathRoot:         PathRoot(dir),
		force:            Force(false),
		keep:             Keep(false),
		dispatchDois:     DispatchDois(false),
		calculateSize:    CalculateSizeFlag(true),
		mode:             InstallableRemote,
		dispatchTasks:    false,
		fileSem:          semaphore.NewWeighted(4),
		downloadIndexSem: semaphore.NewWeighted(4),
		downloadSem:      semaphore.NewWeighted(4),
		decodeSem:        semaphore.NewWeighted(4),
		send:             send,
		running:          &running,
	}

	if err := walkDirectory(context.Background(), p, PathId("dataset")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rootScanned, subScanned *DirectoryScanned
	rootChildren, subChildren := -1, -1
	for _, m := range msgs() {
		switch v := m.(type) {
		case DirectoryScannedMessage:
			report := v.Report
			switch report.PathId {
			case PathId("dataset"):
				r := report
				rootScanned = &r
			case PathId("dataset/sub"):
				r := report
				subScanned = &r
			}
		case IndexLoadedMessage:
			switch v.PathId {
			case PathId("dataset"):
				rootChildren = v.Children
			case PathId("dataset/sub"):
				subChildren = v.Children
			}
		}
	}

	if rootScanned == nil || subScanned == nil {
		t.Fatalf("expected scanned reports for both directories, got root=%v sub=%v", rootScanned, subScanned)
	}
	if rootScanned.CalculateSizeRaw.RemoteBytes != 20 {
		t.Fatalf("expected root remote bytes 20, got %d", rootScanned.CalculateSizeRaw.RemoteBytes)
	}
	if subScanned.CalculateSizeRaw.RemoteBytes != 10 {
		t.Fatalf("expected sub remote bytes 10, got %d", subScanned.CalculateSizeRaw.RemoteBytes)
	}
	if rootChildren != 1 {
		t.Fatalf("expected root to report 1 child directory, got %d", rootChildren)
	}
	if subChildren != 0 {
		t.Fatalf("expected sub to report 0 child directories, got %d", subChildren)
	}
}
