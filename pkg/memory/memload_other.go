// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-josekit.
//
// go-josekit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

//go:build !linux

package memory

import (
	"math"
	"runtime"
	"runtime/debug"
)

// SystemMemoryLoad approximates memory load from the Go runtime: heap in use
// relative to the soft memory limit, or to memory obtained from the OS when
// no limit is set.
func SystemMemoryLoad() (float64, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	limit := debug.SetMemoryLimit(-1)
	if limit > 0 && limit != math.MaxInt64 {
		return math.Min(1, float64(ms.HeapInuse)/float64(limit)), nil
	}
	if ms.Sys == 0 {
		return 0, ErrMemoryLoadUnavailable
	}
	return float64(ms.HeapInuse) / float64(ms.Sys), nil
}
