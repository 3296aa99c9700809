// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const indexSuffix = Name("-index.json")

// walkParams bundles the parameters threaded unchanged through every
// recursive call of walkDirectory for one dataset's subtree.
type walkParams struct {
	server           *Server
	pathRoot         PathRoot
	force            Force
	keep             Keep
	dispatchDois     DispatchDois
	calculateSize    CalculateSizeFlag
	mode             InstallableMode
	// dispatchTasks gates spawning download/decode tasks independent of
	// mode: the size driver reports bookkeeping for a dataset's real
	// mode but never downloads or decodes anything.
	dispatchTasks    bool
	fileSem          *semaphore.Weighted
	downloadIndexSem *semaphore.Weighted
	downloadSem      *semaphore.Weighted
	decodeSem        *semaphore.Weighted
	send             Sender
	running          *atomic.Bool
}

// walkDirectory installs or inventories the subtree rooted at pathId,
// per the directory-walker contract: fetch the index, report scanned
// state, recurse into subdirectories, and dispatch file tasks.
func walkDirectory(ctx context.Context, p *walkParams, pathId PathId) error {
	if err := os.MkdirAll(p.pathRoot.Join(pathId), 0o755); err != nil {
		return &IOError{Op: "create", Path: p.pathRoot.Join(pathId), PathId: pathId, Err: err}
	}

	indexPathId := pathId.Join(indexSuffix)
	indexFilePath := p.pathRoot.Join(indexPathId)

	scanned := DirectoryScanned{PathId: pathId}
	if !p.force {
		if info, err := os.Stat(indexFilePath); err == nil && info.Mode().IsRegular() {
			scanned.Index = Report{InitialBytes: uint64(info.Size()), FinalBytes: uint64(info.Size())}
		} else if info, err := os.Stat(p.pathRoot.JoinWithSuffix(indexPathId, downloadSuffix)); err == nil && info.Mode().IsRegular() {
			scanned.Index = Report{InitialBytes: uint64(info.Size())}
		}
	}

	if err := p.server.downloadFile(ctx, p.send, p.pathRoot, indexPathId, p.force, nil, nil, "", p.downloadIndexSem, p.fileSem); err != nil {
		return err
	}

	var index Index
	{
		if err := p.fileSem.Acquire(ctx, 1); err != nil {
			return &ResourceError{Kind: "semaphore", Err: err}
		}
		content, err := os.ReadFile(indexFilePath)
		p.fileSem.Release(1)
		if err != nil {
			return &IOError{Op: "open", Path: indexFilePath, PathId: pathId, Err: err}
		}
		if err := json.Unmarshal(content, &index); err != nil {
			return &ParseError{PathId: pathId, Source: "json", Err: err}
		}
	}

	p.send(IndexLoadedMessage{PathId: pathId, Children: len(index.Directories)})

	if p.dispatchDois && index.Doi != nil {
		p.send(DoiMessage{PathId: pathId, Value: *index.Doi})
	}

	eg, egCtx := errgroup.WithContext(ctx)

	for _, directory := range index.Directories {
		directory := directory
		childId := pathId.Join(directory)
		eg.Go(func() error {
			return walkDirectory(egCtx, p, childId)
		})
	}

	if scanned.Index.FinalBytes == 0 {
		info, err := os.Stat(indexFilePath)
		if err != nil || !info.Mode().IsRegular() {
			return &IOError{Op: "stat", Path: indexFilePath, PathId: pathId, Err: err}
		}
		scanned.Index.FinalBytes = uint64(info.Size())
	}

	if p.dispatchDois || p.calculateSize || p.mode != InstallableRemote {
		for _, resource := range index.Resources() {
			if p.dispatchDois && resource.Doi != nil {
				p.send(DoiMessage{PathId: pathId.Join(resource.Name), Value: *resource.Doi})
			}
			if !p.calculateSize && p.mode == InstallableRemote {
				continue
			}
			_, compressionProps := resource.BestCompression()
			if p.mode == InstallableLocal || p.mode == InstallableRaw {
				scanned.Download.FinalBytes += compressionProps.Size
				scanned.FinalCount++
			}
			if p.mode == InstallableRaw {
				scanned.Process.FinalBytes += resource.Size
			}
			if p.calculateSize {
				scanned.CalculateSizeCompressed.RemoteBytes += compressionProps.Size
				scanned.CalculateSizeRaw.RemoteBytes += resource.Size
			}
			if p.calculateSize || !p.force {
				resourcePathId := pathId.Join(resource.Name)
				if info, err := os.Stat(p.pathRoot.Join(resourcePathId)); err == nil && info.Mode().IsRegular() {
					if p.calculateSize {
						scanned.CalculateSizeRaw.LocalBytes += uint64(info.Size())
						if cinfo, err := os.Stat(p.pathRoot.JoinWithSuffix(resourcePathId, string(compressionProps.Suffix))); err == nil && cinfo.Mode().IsRegular() {
							scanned.CalculateSizeCompressed.LocalBytes += uint64(cinfo.Size())
						} else if dinfo, err := os.Stat(p.pathRoot.JoinWithSuffixes(resourcePathId, string(compressionProps.Suffix), downloadSuffix)); err == nil && dinfo.Mode().IsRegular() {
							scanned.CalculateSizeCompressed.LocalBytes += uint64(dinfo.Size())
						}
					}
					if !p.force && p.mode != InstallableRemote {
						scanned.InitialDownloadCount++
						scanned.Download.InitialBytes += compressionProps.Size
						if p.mode == InstallableRaw {
							scanned.InitialProcessCount++
							scanned.Process.InitialBytes += uint64(info.Size())
						}
					}
				} else if cinfo, err := os.Stat(p.pathRoot.JoinWithSuffix(resourcePathId, string(compressionProps.Suffix))); err == nil && cinfo.Mode().IsRegular() {
					if p.calculateSize {
						scanned.CalculateSizeCompressed.LocalBytes += uint64(cinfo.Size())
					}
					if !p.force && p.mode != InstallableRemote {
						scanned.InitialDownloadCount++
						scanned.Download.InitialBytes += uint64(cinfo.Size())
					}
				} else if dinfo, err := os.Stat(p.pathRoot.JoinWithSuffixes(resourcePathId, string(compressionProps.Suffix), downloadSuffix)); err == nil && dinfo.Mode().IsRegular() {
					if p.calculateSize {
						scanned.CalculateSizeCompressed.LocalBytes += uint64(dinfo.Size())
					}
					if !p.force && p.mode != InstallableRemote {
						scanned.Download.InitialBytes += uint64(dinfo.Size())
					}
				}
			}
		}
	}

	p.send(DirectoryScannedMessage{Report: scanned})

	if p.dispatchTasks && (p.mode == InstallableLocal || p.mode == InstallableRaw) {
		for _, resource := range index.Resources() {
			resource := resource
			skip := false
			if !p.force && p.mode == InstallableRaw {
				if info, err := os.Stat(p.pathRoot.Join(pathId.Join(resource.Name))); err == nil && info.Mode().IsRegular() {
					skip = true
				}
			}
			if skip {
				continue
			}
			resourcePathId := pathId.Join(resource.Name)
			compression, compressionProps := resource.BestCompression()
			eg.Go(func() error {
				if err := p.server.downloadFile(egCtx, p.send, p.pathRoot, resourcePathId, p.force,
					&compressionProps.Size, &compressionProps.Hash, compressionProps.Suffix,
					p.downloadSem, p.fileSem); err != nil {
					return err
				}
				if p.mode == InstallableRaw && compression.Kind == CompressionBrotli {
					if err := p.decodeSem.Acquire(egCtx, 1); err != nil {
						return &ResourceError{Kind: "semaphore", Err: err}
					}
					if err := p.fileSem.Acquire(egCtx, 2); err != nil {
						p.decodeSem.Release(1)
						return &ResourceError{Kind: "semaphore", Err: err}
					}
					err := decodeBrotli(p.running, p.send, p.pathRoot, resourcePathId, p.force, p.keep,
						resource.Size, resource.Hash, compressionProps.Suffix)
					p.fileSem.Release(2)
					p.decodeSem.Release(1)
					if err != nil {
						return err
					}
				}
				return nil
			})
		}
	}

	return eg.Wait()
}
