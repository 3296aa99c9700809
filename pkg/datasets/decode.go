// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/andybalholm/brotli"
)

const decompressSuffix = ".decompress"
const decompressChunkSize = 64 * 1024

// decodeBrotli decompresses the Brotli sibling of path_id's raw file,
// verifying the decoded digest and size against expected, then renames
// the result into place and, unless keep is set, best-effort removes
// the compressed source. If the raw file already exists and force is
// not set, it returns immediately without reading anything.
//
// running is polled after every chunk; when cleared mid-stream this
// returns a *ControlError with Kind "interrupted" so the driver can
// distinguish cancellation from a genuine decode failure.
func decodeBrotli(
	running *atomic.Bool,
	send Sender,
	pathRoot PathRoot,
	pathId PathId,
	force Force,
	keep Keep,
	expectedSize uint64,
	expectedHash Hash,
	suffix Name,
) error {
	filePath := pathRoot.Join(pathId)
	if !force {
		if info, err := os.Stat(filePath); err == nil && info.Mode().IsRegular() {
			return nil
		}
	}

	compressedPath := pathRoot.JoinWithSuffix(pathId, string(suffix))
	decompressPath := pathRoot.JoinWithSuffixes(pathId, string(suffix), decompressSuffix)

	src, err := os.Open(compressedPath)
	if err != nil {
		return &IOError{Op: "open", Path: compressedPath, PathId: pathId, Err: err}
	}
	dst, err := os.Create(decompressPath)
	if err != nil {
		src.Close()
		return &IOError{Op: "create", Path: decompressPath, PathId: pathId, Err: err}
	}

	reader := brotli.NewReader(src)
	hasher := NewHasher()
	var size uint64
	var progressSize int64
	buf := make([]byte, decompressChunkSize)

	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			if !running.Load() {
				src.Close()
				dst.Close()
				return &ControlError{Kind: "interrupted", PathId: pathId}
			}
			chunk := buf[:n]
			if _, werr := dst.Write(chunk); werr != nil {
				src.Close()
				dst.Close()
				return &IOError{Op: "write", Path: decompressPath, PathId: pathId, Err: werr}
			}
			hasher.Write(chunk)
			size += uint64(n)
			progressSize += int64(n)
			if progressSize >= PROGRESS_SIZE {
				send(DecodeProgressMessage{Progress: Progress{PathId: pathId, CurrentBytes: progressSize, FinalBytes: progressSize}})
				progressSize = 0
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			src.Close()
			dst.Close()
			return &ParseError{PathId: pathId, Source: "brotli", Err: readErr}
		}
	}
	if progressSize > 0 {
		send(DecodeProgressMessage{Progress: Progress{PathId: pathId, CurrentBytes: progressSize, FinalBytes: progressSize}})
	}

	src.Close()
	if err := dst.Close(); err != nil {
		return &IOError{Op: "write", Path: decompressPath, PathId: pathId, Err: err}
	}

	got := SumHash(hasher)
	if got != expectedHash {
		return &HashMismatchError{PathId: pathId, Expected: expectedHash, Got: got}
	}
	if size != expectedSize {
		return &SizeMismatchError{PathId: pathId, Expected: expectedSize, Got: size}
	}

	if err := os.Rename(decompressPath, filePath); err != nil {
		return &IOError{Op: "rename", Path: filePath, PathId: pathId, Err: err}
	}
	if !keep {
		_ = os.Remove(compressedPath)
	}
	send(DecodeProgressMessage{Progress: Progress{PathId: pathId, Complete: true}})
	return nil
}
