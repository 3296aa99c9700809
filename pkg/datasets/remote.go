// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"context"
	"fmt"
	"hash"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultTimeout is the connect timeout used when a dataset does not
// declare one.
const DefaultTimeout = 60 * time.Second

const downloadSuffix = ".download"

// Server is a thin HTTP client bound to one dataset's base URL.
type Server struct {
	client             *http.Client
	baseURL            string
	urlEndsWithSlash   bool
}

// NewServer builds a Server for a dataset's URL with the given connect
// timeout (DefaultTimeout if timeout is nil).
func NewServer(u *url.URL, timeout *float64) *Server {
	d := DefaultTimeout
	if timeout != nil {
		d = time.Duration(*timeout * float64(time.Second))
	}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: d}).DialContext,
		MaxIdleConns:          64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	s := u.String()
	return &Server{
		client: &http.Client{
			Transport: tr,
			Timeout:   0, // only the connect phase is bounded; bodies stream without a deadline
		},
		baseURL:          s,
		urlEndsWithSlash: strings.HasSuffix(s, "/"),
	}
}

// urlFromPathIdAndSuffix builds the remote URL for path_id+suffix by
// dropping the dataset-name segment (the first PathId component, which
// has no remote counterpart) and appending the remainder plus suffix to
// the dataset's base URL. A bare dataset-root PathId (no '/') resolves
// to the base URL itself.
func (s *Server) urlFromPathIdAndSuffix(pathId PathId, suffix Name) string {
	id := string(pathId)
	idx := strings.IndexByte(id, '/')
	if idx < 0 {
		return s.baseURL
	}
	sep := "/"
	if s.urlEndsWithSlash {
		sep = ""
	}
	return s.baseURL + sep + id[idx+1:] + string(suffix)
}

// downloadState is the outcome of deciding how to begin a download.
type downloadState int

const (
	downloadComplete downloadState = iota
	downloadPartial
	downloadNotStarted
)

// downloadFileContext carries the open file, running hasher, and
// running size accumulator for one in-flight download.
type downloadFileContext struct {
	file   *os.File
	hasher hash.Hash
	size   *uint64
}

// downloadFile fetches path_id+suffix into path_root, resuming a
// ".download" sibling via a Range request when possible, verifying
// size and hash, and atomically renaming into place. expectedSize and
// expectedHash are nil when the caller has nothing to verify against
// (e.g. an index file). It acquires two file permits and then one
// download permit (in that order, everywhere) for the duration of the
// transfer, releasing both before emitting the terminal progress
// message.
func (s *Server) downloadFile(
	ctx context.Context,
	send Sender,
	pathRoot PathRoot,
	pathId PathId,
	force Force,
	expectedSize *uint64,
	expectedHash *Hash,
	suffix Name,
	downloadSem *semaphore.Weighted,
	fileSem *semaphore.Weighted,
) error {
	downloadPath := pathRoot.JoinWithSuffixes(pathId, string(suffix), downloadSuffix)
	filePath := pathRoot.JoinWithSuffix(pathId, string(suffix))

	state, fctx, skip, err := s.beginDownload(downloadPath, filePath, pathId, force, expectedSize, expectedHash, send)
	if err != nil {
		return err
	}
	if state == downloadComplete {
		return nil
	}

	if err := fileSem.Acquire(ctx, 2); err != nil {
		return &ResourceError{Kind: "semaphore", Err: err}
	}
	if err := downloadSem.Acquire(ctx, 1); err != nil {
		fileSem.Release(2)
		return &ResourceError{Kind: "semaphore", Err: err}
	}
	released := false
	releasePermits := func() {
		if !released {
			released = true
			downloadSem.Release(1)
			fileSem.Release(2)
		}
	}
	defer releasePermits()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.urlFromPathIdAndSuffix(pathId, suffix), nil)
	if err != nil {
		return &TransportError{PathId: pathId, URL: s.urlFromPathIdAndSuffix(pathId, suffix), Err: err}
	}
	if state == downloadPartial {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", skip))
	}
	resp, err := s.client.Do(req)
	if err != nil {
		fctx.file.Close()
		return &TransportError{PathId: pathId, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	if state == downloadPartial && resp.StatusCode != http.StatusPartialContent {
		// Server ignored the Range request: discard what we had and restart clean.
		size := int64(skip)
		send(RemoteProgressMessage{Progress: Progress{PathId: pathId, InitialBytes: -size, CurrentBytes: -size, FinalBytes: -size}})
		fctx.file.Close()
		fresh, ferr := os.Create(downloadPath)
		if ferr != nil {
			return &IOError{Op: "create", Path: downloadPath, PathId: pathId, Err: ferr}
		}
		fctx = &downloadFileContext{file: fresh}
		if expectedHash != nil {
			fctx.hasher = NewHasher()
		}
		if expectedSize != nil {
			zero := uint64(0)
			fctx.size = &zero
		}
		resp.Body.Close()
		req2, err := http.NewRequestWithContext(ctx, http.MethodGet, s.urlFromPathIdAndSuffix(pathId, suffix), nil)
		if err != nil {
			return &TransportError{PathId: pathId, URL: s.urlFromPathIdAndSuffix(pathId, suffix), Err: err}
		}
		resp, err = s.client.Do(req2)
		if err != nil {
			fctx.file.Close()
			return &TransportError{PathId: pathId, URL: req2.URL.String(), Err: err}
		}
		defer resp.Body.Close()
	}

	if err := streamToFile(resp.Body, fctx, pathId, send); err != nil {
		fctx.file.Close()
		return err
	}
	fctx.file.Close()
	releasePermits()

	if fctx.hasher != nil && expectedHash != nil {
		got := SumHash(fctx.hasher)
		if got != *expectedHash {
			return &HashMismatchError{PathId: pathId, Expected: *expectedHash, Got: got}
		}
	}
	if fctx.size != nil && expectedSize != nil {
		if *fctx.size != *expectedSize {
			return &SizeMismatchError{PathId: pathId, Expected: *expectedSize, Got: *fctx.size}
		}
	}
	if err := os.Rename(downloadPath, filePath); err != nil {
		return &IOError{Op: "rename", Path: filePath, PathId: pathId, Err: err}
	}
	send(RemoteProgressMessage{Progress: Progress{PathId: pathId, Complete: true}})
	return nil
}

func streamToFile(body io.Reader, fctx *downloadFileContext, pathId PathId, send Sender) error {
	buf := make([]byte, 64*1024)
	var progressSize int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if _, err := fctx.file.Write(chunk); err != nil {
				return &IOError{Op: "write", Path: fctx.file.Name(), PathId: pathId, Err: err}
			}
			if fctx.hasher != nil {
				fctx.hasher.Write(chunk)
			}
			if fctx.size != nil {
				*fctx.size += uint64(n)
			}
			progressSize += int64(n)
			if progressSize >= PROGRESS_SIZE {
				send(RemoteProgressMessage{Progress: Progress{PathId: pathId, CurrentBytes: progressSize, FinalBytes: progressSize}})
				progressSize = 0
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return &TransportError{PathId: pathId, Err: readErr}
		}
	}
	if progressSize > 0 {
		send(RemoteProgressMessage{Progress: Progress{PathId: pathId, CurrentBytes: progressSize, FinalBytes: progressSize}})
	}
	return nil
}

// beginDownload decides, without holding any permit, whether the
// target is already complete, resumable, or must start fresh. On
// downloadComplete it has already emitted the terminal progress
// message; the caller must not emit another.
func (s *Server) beginDownload(
	downloadPath, filePath string,
	pathId PathId,
	force Force,
	expectedSize *uint64,
	expectedHash *Hash,
	send Sender,
) (downloadState, *downloadFileContext, uint64, error) {
	if force {
		f, err := os.Create(downloadPath)
		if err != nil {
			return 0, nil, 0, &IOError{Op: "create", Path: downloadPath, PathId: pathId, Err: err}
		}
		ctx := &downloadFileContext{file: f}
		if expectedHash != nil {
			ctx.hasher = NewHasher()
		}
		if expectedSize != nil {
			zero := uint64(0)
			ctx.size = &zero
		}
		return downloadNotStarted, ctx, 0, nil
	}

	if info, err := os.Stat(filePath); err == nil && info.Mode().IsRegular() {
		size := info.Size()
		if expectedSize != nil {
			size = int64(*expectedSize)
		}
		send(RemoteProgressMessage{Progress: Progress{PathId: pathId, InitialBytes: size, CurrentBytes: size, FinalBytes: size, Complete: true}})
		return downloadComplete, nil, 0, nil
	}

	if info, err := os.Stat(downloadPath); err == nil && info.Mode().IsRegular() {
		var hasher hash.Hash
		if expectedHash != nil {
			hasher = NewHasher()
			existing, err := os.Open(downloadPath)
			if err != nil {
				return 0, nil, 0, &IOError{Op: "open", Path: downloadPath, PathId: pathId, Err: err}
			}
			if _, err := io.Copy(hasher, existing); err != nil {
				existing.Close()
				return 0, nil, 0, &IOError{Op: "open", Path: downloadPath, PathId: pathId, Err: err}
			}
			existing.Close()
		}
		f, err := os.OpenFile(downloadPath, os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return 0, nil, 0, &IOError{Op: "open", Path: downloadPath, PathId: pathId, Err: err}
		}
		ctx := &downloadFileContext{file: f, hasher: hasher}
		if expectedSize != nil {
			size := uint64(info.Size())
			ctx.size = &size
		}
		return downloadPartial, ctx, uint64(info.Size()), nil
	}

	f, err := os.Create(downloadPath)
	if err != nil {
		return 0, nil, 0, &IOError{Op: "create", Path: downloadPath, PathId: pathId, Err: err}
	}
	ctx := &downloadFileContext{file: f}
	if expectedHash != nil {
		ctx.hasher = NewHasher()
	}
	if expectedSize != nil {
		zero := uint64(0)
		ctx.size = &zero
	}
	return downloadNotStarted, ctx, 0, nil
}

// FetchIndex downloads and returns the raw bytes of the -index.json
// file at path_id, with no size or hash expectation.
func (s *Server) FetchIndex(ctx context.Context, pathId PathId) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.urlFromPathIdAndSuffix(pathId.Join(indexSuffix), ""), nil)
	if err != nil {
		return nil, &TransportError{PathId: pathId, Err: err}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransportError{PathId: pathId, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{PathId: pathId, URL: req.URL.String(), Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	return io.ReadAll(resp.Body)
}
