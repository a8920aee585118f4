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

//go:build linux

package memory

import "golang.org/x/sys/unix"

// SystemMemoryLoad reports the fraction (0..1) of physical memory in use,
// counting buffer cache as available.
func SystemMemoryLoad() (float64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, err
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	total := uint64(info.Totalram) * unit
	if total == 0 {
		return 0, ErrMemoryLoadUnavailable
	}
	available := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	if available > total {
		available = total
	}
	return 1 - float64(available)/float64(total), nil
}
