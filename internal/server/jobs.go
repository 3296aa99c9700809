// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bodaay/datasetinstaller/pkg/datasets"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// JobAction names which Configuration driver a job runs.
type JobAction string

const (
	ActionInstall JobAction = "install"
	ActionSize    JobAction = "size"
	ActionCite    JobAction = "cite"
)

// JobRequest is the POST /api/jobs request body.
type JobRequest struct {
	Action     JobAction `json:"action"`
	ConfigPath string    `json:"config"`
	Output     string    `json:"output,omitempty"` // required for "cite"
	Force      bool      `json:"force,omitempty"`
	Keep       bool      `json:"keep,omitempty"`
	Pretty     bool      `json:"pretty,omitempty"`
}

// JobProgress is the latest accounting snapshot for a running job,
// accumulated from the datasets.Message stream it observes.
type JobProgress struct {
	DirectoriesScanned int    `json:"directoriesScanned"`
	FilesDownloaded    int    `json:"filesDownloaded"`
	BytesDownloaded    uint64 `json:"bytesDownloaded"`
	DoisDiscovered     int    `json:"doisDiscovered"`
	LastPathId         string `json:"lastPathId,omitempty"`
}

// Job is a single install/size/cite run tracked by the JobManager.
type Job struct {
	ID         string      `json:"id"`
	Action     JobAction   `json:"action"`
	ConfigPath string      `json:"config"`
	Status     JobStatus   `json:"status"`
	Progress   JobProgress `json:"progress"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	StartedAt  time.Time   `json:"startedAt,omitempty"`
	EndedAt    time.Time   `json:"endedAt,omitempty"`

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (j *Job) snapshot() *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	cp := *j
	cp.mu = sync.Mutex{}
	cp.cancel = nil
	return &cp
}

// JobManager runs dataset actions as background jobs and fans their
// progress out over the status server's WebSocket hub.
type JobManager struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	config Config
	wsHub  *WSHub
}

// NewJobManager creates a job manager bound to cfg's default permit
// budgets and wsHub for broadcasting progress.
func NewJobManager(cfg Config, wsHub *WSHub) *JobManager {
	return &JobManager{
		jobs:   make(map[string]*Job),
		config: cfg,
		wsHub:  wsHub,
	}
}

func generateJobID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// CreateJob validates req, registers a new Job, and starts it in the
// background. The returned Job reflects only the initial "pending"
// snapshot; callers poll GetJob or subscribe to the WebSocket feed for
// progress.
func (jm *JobManager) CreateJob(req JobRequest) (*Job, error) {
	if req.ConfigPath == "" {
		return nil, fmt.Errorf("config path is required")
	}
	switch req.Action {
	case ActionInstall, ActionSize, ActionCite:
	default:
		return nil, fmt.Errorf("unknown action %q", req.Action)
	}
	if req.Action == ActionCite && req.Output == "" {
		return nil, fmt.Errorf("output path is required for the cite action")
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:         generateJobID(),
		Action:     req.Action,
		ConfigPath: req.ConfigPath,
		Status:     JobPending,
		CreatedAt:  time.Now(),
		cancel:     cancel,
	}

	jm.mu.Lock()
	jm.jobs[job.ID] = job
	jm.mu.Unlock()

	snap := job.snapshot()
	go jm.run(ctx, job, req)

	return snap, nil
}

func (jm *JobManager) run(ctx context.Context, job *Job, req JobRequest) {
	cfg, _, err := datasets.LoadConfiguration(req.ConfigPath)
	if err != nil {
		jm.fail(job, err)
		return
	}

	job.mu.Lock()
	job.Status = JobRunning
	job.StartedAt = time.Now()
	job.mu.Unlock()
	jm.broadcast(job)

	running := new(atomic.Bool)
	running.Store(true)

	handle := func(m datasets.Message) {
		jm.apply(job, m)
		jm.wsHub.Broadcast("job_message", map[string]any{"jobId": job.ID, "message": m})
	}

	switch req.Action {
	case ActionInstall:
		err = cfg.Install(ctx, running, handle,
			datasets.Force(req.Force), datasets.Keep(req.Keep), datasets.DispatchDois(false),
			jm.config.FilePermits, jm.config.DownloadIndexPermits, jm.config.DownloadPermits, jm.config.DecodePermits)
	case ActionSize:
		err = cfg.CalculateSize(ctx, running, handle,
			datasets.Force(req.Force), jm.config.FilePermits, jm.config.DownloadIndexPermits)
	case ActionCite:
		err = cfg.Cite(ctx, handle, req.Output,
			datasets.Force(req.Force), jm.config.FilePermits, jm.config.DownloadIndexPermits,
			jm.config.DownloadPermits, jm.config.DoiPermits, nil, datasets.Pretty(req.Pretty))
	}

	if err != nil {
		jm.fail(job, err)
		return
	}

	job.mu.Lock()
	job.Status = JobCompleted
	job.EndedAt = time.Now()
	job.mu.Unlock()
	jm.broadcast(job)
}

func (jm *JobManager) apply(job *Job, m datasets.Message) {
	job.mu.Lock()
	defer job.mu.Unlock()
	switch v := m.(type) {
	case datasets.DirectoryScannedMessage:
		job.Progress.DirectoriesScanned++
		job.Progress.LastPathId = string(v.Report.PathId)
	case datasets.RemoteProgressMessage:
		job.Progress.LastPathId = string(v.Progress.PathId)
		job.Progress.BytesDownloaded += uint64(v.Progress.CurrentBytes)
		if v.Progress.Complete {
			job.Progress.FilesDownloaded++
		}
	case datasets.DoiMessage:
		job.Progress.DoisDiscovered++
	}
}

func (jm *JobManager) fail(job *Job, err error) {
	job.mu.Lock()
	if err == context.Canceled {
		job.Status = JobCancelled
	} else {
		job.Status = JobFailed
	}
	job.Error = err.Error()
	job.EndedAt = time.Now()
	job.mu.Unlock()
	jm.broadcast(job)
}

func (jm *JobManager) broadcast(job *Job) {
	if jm.wsHub != nil {
		jm.wsHub.BroadcastJob(job.snapshot())
	}
}

// GetJob returns a snapshot of the job with the given ID.
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	job, ok := jm.jobs[id]
	jm.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return job.snapshot(), true
}

// ListJobs returns a snapshot of every tracked job.
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	out := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		out = append(out, job.snapshot())
	}
	return out
}

// CancelJob requests cancellation of a running job. It reports whether
// a cancellable job with the given ID was found.
func (jm *JobManager) CancelJob(id string) bool {
	jm.mu.RLock()
	job, ok := jm.jobs[id]
	jm.mu.RUnlock()
	if !ok {
		return false
	}
	job.mu.Lock()
	status := job.Status
	cancel := job.cancel
	job.mu.Unlock()
	if status != JobPending && status != JobRunning {
		return false
	}
	if cancel != nil {
		cancel()
	}
	return true
}
