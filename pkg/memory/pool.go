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

// Package memory provides a pool of pinned, zero-on-release byte buffers for
// key material and other sensitive scratch data.
//
// Buffers come in a single page-sized class. Requests above PageSize receive
// a dedicated unpooled allocation and zero-length requests receive a shared
// empty lease. Every lease is zeroed exactly once when disposed:
//
//	pool := memory.NewPool(nil)
//	defer pool.Dispose()
//
//	buf, err := pool.Rent(32)
//	if err != nil {
//	    return err
//	}
//	defer buf.Dispose()
//
// On unix platforms pages are mapped outside the Go heap and locked into RAM
// when the process is allowed to.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jeremyhahn/go-josekit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-josekit/pkg/metrics"
)

const (
	// PageSize is the single pooled size class in bytes.
	PageSize = 4096

	// DefaultMaxRetained is the default capacity of the free queue.
	DefaultMaxRetained = 256
)

// PoolConfig configures a Pool.
type PoolConfig struct {
	// MaxRetained caps the number of zeroed pages kept in the free queue.
	// Zero means DefaultMaxRetained.
	MaxRetained int

	// DisableMemoryLock skips mlock(2) on new pages.
	DisableMemoryLock bool

	// Housekeeping enables the background trimming task when non-nil.
	Housekeeping *HousekeepingConfig

	// Logger receives pool lifecycle events. Defaults to a discard logger.
	Logger logger.Logger
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	// Retained is the number of zeroed pages in the free queue.
	Retained int

	// Outstanding counts pooled-class leases not yet disposed.
	Outstanding int64

	// Allocated counts pooled-class pages currently mapped.
	Allocated int64

	// Trims counts housekeeping passes that released pages.
	Trims int64
}

// Pool hands out SecureBuffer leases. It is safe for concurrent use.
type Pool struct {
	free        chan *page
	lock        bool
	disposed    atomic.Bool
	outstanding atomic.Int64
	allocated   atomic.Int64
	trims       atomic.Int64
	logger      logger.Logger
	keeper      *Housekeeper
	disposeOnce sync.Once
}

var (
	sharedOnce sync.Once
	shared     *Pool
)

// Shared returns a process-wide pool with default settings. It is never
// disposed.
func Shared() *Pool {
	sharedOnce.Do(func() {
		shared = NewPool(nil)
	})
	return shared
}

// NewPool creates a pool. A nil config uses defaults with housekeeping off.
func NewPool(config *PoolConfig) *Pool {
	if config == nil {
		config = &PoolConfig{}
	}
	maxRetained := config.MaxRetained
	if maxRetained <= 0 {
		maxRetained = DefaultMaxRetained
	}
	p := &Pool{
		free:   make(chan *page, maxRetained),
		lock:   !config.DisableMemoryLock,
		logger: logger.OrDiscard(config.Logger),
	}
	if config.Housekeeping != nil {
		p.keeper = newHousekeeper(context.Background(), p, config.Housekeeping)
		go p.keeper.Start()
	}
	return p
}

// Rent leases a buffer of exactly minSizeBytes bytes. Size zero returns the
// shared empty lease without allocating.
func (p *Pool) Rent(minSizeBytes int) (*SecureBuffer, error) {
	if p.disposed.Load() {
		return nil, ErrPoolDisposed
	}
	if minSizeBytes < 0 {
		return nil, ErrInvalidSize
	}
	if minSizeBytes == 0 {
		metrics.RecordRent(metrics.ClassEmpty)
		return emptyBuffer, nil
	}

	if minSizeBytes > PageSize {
		size := (minSizeBytes + PageSize - 1) &^ (PageSize - 1)
		pg, err := allocPages(size, p.lock)
		if err != nil {
			return nil, err
		}
		metrics.RecordRent(metrics.ClassUnpooled)
		return newLease(pg, nil, minSizeBytes), nil
	}

	var pg *page
	select {
	case pg = <-p.free:
		metrics.AddRetained(-1)
	default:
		var err error
		pg, err = allocPages(PageSize, p.lock)
		if err != nil {
			return nil, err
		}
		p.allocated.Add(1)
	}
	p.outstanding.Add(1)
	metrics.RecordRent(metrics.ClassPooled)
	return newLease(pg, p, minSizeBytes), nil
}

// release takes back a zeroed page from a disposed lease. On a disposed pool,
// or when the free queue is full, the page is freed instead.
func (p *Pool) release(pg *page) {
	p.outstanding.Add(-1)
	if p.disposed.Load() {
		p.freePage(pg)
		return
	}
	select {
	case p.free <- pg:
		metrics.AddRetained(1)
	default:
		p.freePage(pg)
		return
	}
	// Dispose may have drained the queue between the check and the send.
	if p.disposed.Load() {
		p.drain()
	}
}

func (p *Pool) freePage(pg *page) {
	p.allocated.Add(-1)
	freePages(pg)
}

// drain frees every page currently in the free queue and reports how many
// were released.
func (p *Pool) drain() int {
	n := 0
	for {
		select {
		case pg := <-p.free:
			metrics.AddRetained(-1)
			p.freePage(pg)
			n++
		default:
			return n
		}
	}
}

// Trim releases every retained page back to the operating system. Leases
// that are still outstanding are not affected.
func (p *Pool) Trim() int {
	n := p.drain()
	if n > 0 {
		p.trims.Add(1)
		metrics.RecordTrim()
		p.logger.Debug("secure pool trimmed", logger.Int("released", n))
	}
	return n
}

// NotifyMemoryPressure asks the housekeeping task to check memory load now.
// It is a no-op when housekeeping is disabled.
func (p *Pool) NotifyMemoryPressure() {
	if p.keeper != nil {
		p.keeper.Notify()
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Retained:    len(p.free),
		Outstanding: p.outstanding.Load(),
		Allocated:   p.allocated.Load(),
		Trims:       p.trims.Load(),
	}
}

// IsDisposed reports whether Dispose has been called.
func (p *Pool) IsDisposed() bool {
	return p.disposed.Load()
}

// Dispose stops housekeeping and frees every retained page. Leases still
// outstanding remain valid; their pages are freed when they are disposed.
func (p *Pool) Dispose() {
	p.disposeOnce.Do(func() {
		p.disposed.Store(true)
		if p.keeper != nil {
			p.keeper.Stop()
		}
		n := p.drain()
		p.logger.Debug("secure pool disposed", logger.Int("released", n))
	})
}
