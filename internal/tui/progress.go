// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package tui renders a live terminal view of a dataset action's
// message stream: one progress bar per in-flight download/decode task
// inside a cheggaaa/pb pool, plus colorized status lines for directory
// scans and DOI lookups.
package tui

import (
	"fmt"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"

	"github.com/bodaay/datasetinstaller/pkg/datasets"
)

var (
	infoColor    = color.New(color.FgCyan).SprintFunc()
	successColor = color.New(color.FgHiGreen).SprintFunc()
	warningColor = color.New(color.FgYellow).SprintFunc()
	errorColor   = color.New(color.FgRed).SprintFunc()
)

// LiveRenderer renders progress for one dataset action (install, size,
// or cite) as datasets.Message values arrive.
type LiveRenderer struct {
	mu       sync.Mutex
	pool     *pb.Pool
	total    *pb.ProgressBar
	bars     map[datasets.PathId]*pb.ProgressBar
	started  bool
	scanned  int
	doiCount int
}

// NewLiveRenderer creates a renderer. The pool is started lazily on the
// first message so a silent run (e.g. nothing to do) never touches the
// terminal.
func NewLiveRenderer() *LiveRenderer {
	return &LiveRenderer{
		total: pb.New64(0).Set(pb.Bytes, true).
			SetTemplateString(`{{ "total:" }} {{ bar . }} {{percent . }} {{speed . "%s/s"}} {{etime .}}`),
		bars: make(map[datasets.PathId]*pb.ProgressBar),
	}
}

// Close finishes any remaining bars and stops the pool.
func (lr *LiveRenderer) Close() {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if !lr.started {
		return
	}
	for _, bar := range lr.bars {
		bar.Finish()
	}
	lr.pool.Stop()
}

// Handler returns a datasets.Sender that feeds messages to the renderer.
func (lr *LiveRenderer) Handler() datasets.Sender {
	return func(m datasets.Message) {
		lr.apply(m)
	}
}

func (lr *LiveRenderer) ensureStarted() {
	if lr.started {
		return
	}
	lr.started = true
	lr.pool, _ = pb.StartPool(lr.total)
}

func (lr *LiveRenderer) apply(m datasets.Message) {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	switch v := m.(type) {
	case datasets.IndexLoadedMessage:
		lr.ensureStarted()
	case datasets.DirectoryScannedMessage:
		lr.ensureStarted()
		lr.scanned++
		lr.total.AddTotal(int64(v.Report.Download.FinalBytes))
		fmt.Fprintf(lr.pool.Output, "%s %s (%d directories scanned)\n",
			infoColor("scanned:"), v.Report.PathId, lr.scanned)
	case datasets.RemoteProgressMessage:
		lr.ensureStarted()
		lr.applyProgress(v.Progress, "download")
	case datasets.DecodeProgressMessage:
		lr.ensureStarted()
		lr.applyProgress(v.Progress, "decode")
	case datasets.DoiMessage:
		lr.ensureStarted()
		lr.doiCount++
	case datasets.DoiProgressMessage:
		lr.ensureStarted()
		switch v.Status {
		case datasets.DoiStart:
			fmt.Fprintf(lr.pool.Output, "%s %s\n", warningColor("doi fetch:"), v.Value)
		case datasets.DoiSuccess:
			fmt.Fprintf(lr.pool.Output, "%s %s\n", successColor("doi ok:"), v.Value)
		case datasets.DoiError:
			fmt.Fprintf(lr.pool.Output, "%s %s: %s\n", errorColor("doi failed:"), v.Value, v.Text)
		}
	}
}

func (lr *LiveRenderer) applyProgress(p datasets.Progress, kind string) {
	bar, ok := lr.bars[p.PathId]
	if !ok {
		bar = pb.New64(p.FinalBytes).Set(pb.Bytes, true).
			SetTemplateString(fmt.Sprintf(`{{ "%s %s:" }} {{ bar . }} {{percent . }} {{speed . "%%s/s"}}`, kind, p.PathId))
		bar.SetCurrent(p.InitialBytes)
		lr.pool.Add(bar)
		lr.bars[p.PathId] = bar
		lr.total.Add64(p.InitialBytes)
	}
	if delta := p.CurrentBytes - bar.Current(); delta > 0 {
		bar.Add64(delta)
		lr.total.Add64(delta)
	}
	if p.Complete {
		bar.SetCurrent(p.FinalBytes)
		bar.Finish()
		delete(lr.bars, p.PathId)
	}
}
