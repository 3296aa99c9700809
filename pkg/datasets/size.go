// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"context"
	"sync/atomic"
)

// CalculateSize walks every non-disabled dataset's index tree exactly
// like Install, reporting remote and locally-present byte counts per
// directory (DirectoryScanned.CalculateSizeCompressed/CalculateSizeRaw),
// but never downloads or decodes a data file: the permit pools for
// those two task kinds carry no capacity, and the walker is told not
// to dispatch them regardless of a dataset's configured mode.
func (cfg *Configuration) CalculateSize(
	ctx context.Context,
	running *atomic.Bool,
	handleMessage Sender,
	forceIndexRefresh Force,
	filePermits FilePermits,
	downloadIndexPermits DownloadIndexPermits,
) error {
	return cfg.walkAll(ctx, running, handleMessage, forceIndexRefresh, Keep(false), DispatchDois(false), true,
		filePermits, downloadIndexPermits, 0, 0, false)
}
