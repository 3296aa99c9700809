// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestIntegration_SizeJobAgainstLocalRemote drives the full status
// server surface (job creation, polling, websocket-free status checks)
// against a single-directory dataset served by an in-process HTTP
// server, exercising LoadConfiguration, CalculateSize, and the
// JobManager end to end without touching the network.
func TestIntegration_SizeJobAgainstLocalRemote(t *testing.T) {
	indexJSON := []byte(`{"version":{"major":1,"minor":0,"patch":0},"directories":[],"files":[],"other_files":[]}`)

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/-index.json" {
			w.Write(indexJSON)
			return
		}
		http.NotFound(w, r)
	}))
	defer remote.Close()

	dir := t.TempDir()
	toml := fmt.Sprintf(`directory = "%s"

[[datasets]]
name = "example"
url = "%s/"
mode = "remote"
`, filepath.ToSlash(dir), remote.URL)

	configPath := filepath.Join(dir, "datasetinstaller.toml")
	if err := os.WriteFile(configPath, []byte(toml), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	srv := newTestServer()

	body, _ := json.Marshal(JobRequest{Action: ActionSize, ConfigPath: configPath})
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleCreateJob(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var created Job
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid job json: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		getReq := httptest.NewRequest(http.MethodGet, "/api/jobs/"+created.ID, nil)
		getReq.SetPathValue("id", created.ID)
		getW := httptest.NewRecorder()
		srv.handleGetJob(getW, getReq)

		var job Job
		if err := json.Unmarshal(getW.Body.Bytes(), &job); err != nil {
			t.Fatalf("invalid job json: %v", err)
		}
		if job.Status == JobCompleted {
			if job.Progress.DirectoriesScanned < 1 {
				t.Fatal("expected at least one directory scanned")
			}
			return
		}
		if job.Status == JobFailed {
			t.Fatalf("job failed: %s", job.Error)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job did not complete in time")
}
