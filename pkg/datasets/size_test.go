// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
)

func TestCalculateSizeNeverDownloadsDataFiles(t *testing.T) {
	dataRequested := false
	rootIndex := `{
		"version": {"major": 1, "minor": 0, "patch": 0},
		"directories": [],
		"files": [
			{
				"name": "file.bin",
				"size": 100,
				"hash": "` + testHash56 + `",
				"compressions": [{"type": "none", "suffix": ""}],
				"properties": {"type": "imu"}
			}
		],
		"other_files": []
	}`

	mux := http.NewServeMux()
	mux.HandleFunc("/-index.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rootIndex))
	})
	mux.HandleFunc("/file.bin", func(w http.ResponseWriter, r *http.Request) {
		dataRequested = true
		w.Write([]byte("should never be fetched by CalculateSize"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	dir := t.TempDir()
	u, err := url.Parse(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &Configuration{
		Directory: dir,
		Datasets: []DatasetSettings{
			{Name: Name("dataset"), URL: u, Mode: ModeLocal},
		},
	}

	send, msgs := collectMessages()
	running := atomic.Bool{}
	running.Store(true)

	err = cfg.CalculateSize(context.Background(), &running, send, Force(false), FilePermits(4), DownloadIndexPermits(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dataRequested {
		t.Fatal("expected CalculateSize to never fetch a data file")
	}

	var scanned *DirectoryScanned
	for _, m := range msgs() {
		if dm, ok := m.(DirectoryScannedMessage); ok {
			r := dm.Report
			scanned = &r
		}
	}
	if scanned == nil {
		t.Fatal("expected a DirectoryScannedMessage")
	}
	if scanned.CalculateSizeRaw.RemoteBytes != 100 {
		t.Fatalf("expected remote bytes 100, got %d", scanned.CalculateSizeRaw.RemoteBytes)
	}
}

func TestCalculateSizeSkipsDisabledDatasets(t *testing.T) {
	requested := false
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		requested = true
		w.WriteHeader(http.StatusInternalServerError)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	dir := t.TempDir()
	u, err := url.Parse(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &Configuration{
		Directory: dir,
		Datasets: []DatasetSettings{
			{Name: Name("dataset"), URL: u, Mode: ModeDisabled},
		},
	}

	send, _ := collectMessages()
	running := atomic.Bool{}
	running.Store(true)

	err = cfg.CalculateSize(context.Background(), &running, send, Force(false), FilePermits(4), DownloadIndexPermits(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requested {
		t.Fatal("expected a disabled dataset to never be contacted")
	}
}
