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

//go:build unix

package memory

import "golang.org/x/sys/unix"

// allocPages maps size bytes of anonymous memory outside the Go heap. The
// mapping never moves. When lock is set the pages are also locked into RAM so
// they are never written to swap; locking is best effort because
// RLIMIT_MEMLOCK is commonly small for unprivileged processes.
func allocPages(size int, lock bool) (*page, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	pg := &page{data: data}
	if lock && unix.Mlock(data) == nil {
		pg.locked = true
	}
	return pg, nil
}

// freePages unmaps a page. The caller must have zeroed it.
func freePages(pg *page) {
	if pg.locked {
		_ = unix.Munlock(pg.data)
	}
	_ = unix.Munmap(pg.data)
	pg.data = nil
}
