// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

// PROGRESS_SIZE is the coarse-progress accumulator threshold: a
// download or decode emits a progress message once the running total
// of newly processed bytes reaches this many bytes, and once more for
// the residual at end-of-stream. Not part of the wire contract: each
// progress message carries the bytes added since the previous one
// (negative when a rejected range request discards a partial file), so
// a caller sums the deltas and never depends on the exact step size.
const PROGRESS_SIZE int64 = 131072

// Progress reports the state of a single download or decode task.
type Progress struct {
	PathId       PathId
	InitialBytes int64
	CurrentBytes int64
	FinalBytes   int64
	Complete     bool
}

// Value is a {local_bytes, remote_bytes} pair used by the calculate-size
// accounting in DirectoryScanned.
type Value struct {
	LocalBytes  uint64
	RemoteBytes uint64
}

// Report is an {initial_bytes, final_bytes} pair used for the index,
// download, and process counters in DirectoryScanned.
type Report struct {
	InitialBytes uint64
	FinalBytes   uint64
}

// DirectoryScanned is the per-directory accounting record produced once
// a directory's index has been fully walked.
type DirectoryScanned struct {
	PathId                  PathId
	InitialDownloadCount    uint64
	InitialProcessCount     uint64
	FinalCount              uint64
	Index                   Report
	Download                Report
	Process                 Report
	CalculateSizeCompressed Value
	CalculateSizeRaw        Value
}

// DoiStatus discriminates the outcome carried by a DoiProgress message.
type DoiStatus string

const (
	DoiStart   DoiStatus = "start"
	DoiSuccess DoiStatus = "success"
	DoiError   DoiStatus = "error"
)

// Message is the sealed set of events a driver emits on its message
// channel. Each variant below implements Message via the unexported
// isMessage marker; a caller type-switches on the concrete type.
type Message interface {
	isMessage()
}

// IndexLoadedMessage reports that a directory's index file has been
// fetched and parsed, naming how many subdirectories it declares.
type IndexLoadedMessage struct {
	PathId   PathId
	Children int
}

func (IndexLoadedMessage) isMessage() {}

// DirectoryScannedMessage carries a completed DirectoryScanned report.
type DirectoryScannedMessage struct {
	Report DirectoryScanned
}

func (DirectoryScannedMessage) isMessage() {}

// RemoteProgressMessage reports download progress for one resource.
type RemoteProgressMessage struct {
	Progress Progress
}

func (RemoteProgressMessage) isMessage() {}

// DecodeProgressMessage reports decode progress for one resource.
type DecodeProgressMessage struct {
	Progress Progress
}

func (DecodeProgressMessage) isMessage() {}

// DoiMessage announces a DOI discovered while walking an index.
type DoiMessage struct {
	PathId PathId
	Value  Doi
}

func (DoiMessage) isMessage() {}

// DoiProgressMessage reports the outcome of fetching one DOI's citation
// record. Text holds the bibtex body on DoiSuccess or the error text on
// DoiError; it is empty on DoiStart.
type DoiProgressMessage struct {
	Value  Doi
	Status DoiStatus
	Text   string
}

func (DoiProgressMessage) isMessage() {}

// Sender is the callback a driver invokes for every emitted Message.
// Implementations must not block indefinitely: the driver delivers
// every message before it returns the action's result, so a slow
// sender delays the whole action.
type Sender func(Message)
