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

package memory

import (
	"runtime"
	"sync/atomic"

	"github.com/jeremyhahn/go-josekit/pkg/metrics"
)

// page is one fixed-address allocation backing a lease.
type page struct {
	data   []byte
	locked bool
}

// SecureBuffer is a lease on pinned memory. The first Dispose zeroes the
// whole backing page and either returns it to the owning pool or releases it.
// Subsequent calls are no-ops.
//
// Typical use:
//
//	buf, err := pool.Rent(32)
//	if err != nil {
//	    return err
//	}
//	defer buf.Dispose()
//	key := buf.Bytes()
type SecureBuffer struct {
	span     []byte
	page     *page
	pool     *Pool
	disposed atomic.Bool
	cleanup  runtime.Cleanup
}

// emptyBuffer is the shared zero-length lease. It owns no page, so Dispose
// never allocates or zeroes anything.
var emptyBuffer = &SecureBuffer{span: []byte{}}

// Empty returns the shared zero-length lease.
func Empty() *SecureBuffer {
	return emptyBuffer
}

// reclaim is the runtime cleanup for leases dropped without Dispose.
type reclaim struct {
	page *page
	pool *Pool
}

func newLease(pg *page, pool *Pool, size int) *SecureBuffer {
	b := &SecureBuffer{
		span: pg.data[:size:size],
		page: pg,
		pool: pool,
	}
	b.cleanup = runtime.AddCleanup(b, reclaimLease, reclaim{page: pg, pool: pool})
	return b
}

func reclaimLease(r reclaim) {
	clear(r.page.data)
	metrics.RecordReclaim()
	metrics.RecordRelease()
	if r.pool != nil {
		r.pool.release(r.page)
		return
	}
	freePages(r.page)
}

// Bytes returns the leased span, exactly as long as requested. It returns
// nil after Dispose.
func (b *SecureBuffer) Bytes() []byte {
	if b.disposed.Load() {
		return nil
	}
	return b.span
}

// Len returns the leased length in bytes.
func (b *SecureBuffer) Len() int {
	return len(b.span)
}

// Pooled reports whether the lease came from a pool's free queue size class.
func (b *SecureBuffer) Pooled() bool {
	return b.pool != nil
}

// IsDisposed reports whether Dispose has been called.
func (b *SecureBuffer) IsDisposed() bool {
	return b.disposed.Load()
}

// Dispose zeroes the backing memory and releases it. Safe to call more than
// once and from any goroutine.
func (b *SecureBuffer) Dispose() {
	if b == nil || b.page == nil {
		return
	}
	if !b.disposed.CompareAndSwap(false, true) {
		return
	}
	b.cleanup.Stop()

	pg := b.page
	clear(pg.data)
	metrics.RecordRelease()

	if b.pool != nil {
		b.pool.release(pg)
		return
	}
	freePages(pg)
}
