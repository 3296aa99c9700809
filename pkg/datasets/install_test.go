// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
)

const (
	installFileContent = "installed file body, twenty+ bytes for a real download test"
	installFileHash    = "b06bbabc5dbcba53b67eb31e9b753e82b662695fc1f79d85de87ebb1"
)

func TestInstallDownloadsLocalModeDataset(t *testing.T) {
	rootIndex := `{
		"version": {"major": 1, "minor": 0, "patch": 0},
		"directories": [],
		"files": [
			{
				"name": "file.bin",
				"size": ` + strconv.Itoa(len(installFileContent)) + `,
				"hash": "` + installFileHash + `",
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
		w.Write([]byte(installFileContent))
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

	err = cfg.Install(context.Background(), &running, send, Force(false), Keep(false), DispatchDois(false),
		FilePermits(4), DownloadIndexPermits(2), DownloadPermits(2), DecodePermits(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "dataset", "file.bin"))
	if err != nil {
		t.Fatalf("expected downloaded file: %v", err)
	}
	if string(got) != installFileContent {
		t.Fatalf("content mismatch: got %q", got)
	}

	completions := 0
	for _, m := range msgs() {
		if rp, ok := m.(RemoteProgressMessage); ok && rp.Progress.Complete {
			completions++
		}
	}
	if completions < 1 {
		t.Fatal("expected at least one completed remote progress message")
	}
}

func TestInstallSkipsDisabledDatasets(t *testing.T) {
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

	err = cfg.Install(context.Background(), &running, send, Force(false), Keep(false), DispatchDois(false),
		FilePermits(4), DownloadIndexPermits(2), DownloadPermits(2), DecodePermits(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requested {
		t.Fatal("expected a disabled dataset to never be contacted")
	}
}
