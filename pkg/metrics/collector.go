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

package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// PoolStatsFunc samples a secure pool. It returns the number of pinned
// pages the pool has mapped.
type PoolStatsFunc func() (allocated int64)

// ResourceCollector periodically samples process resources and the
// allocated page count of registered pools.
type ResourceCollector struct {
	ctx      context.Context
	cancel   context.CancelFunc
	interval time.Duration
	started  time.Time

	mu    sync.Mutex
	pools map[string]PoolStatsFunc
}

// NewResourceCollector creates a collector that samples every interval
// until ctx is canceled or Stop is called.
//
// Example:
//
//	collector := metrics.NewResourceCollector(ctx, 30*time.Second)
//	collector.WatchPool("shared", func() int64 { return memory.Shared().Stats().Allocated })
//	go collector.Start()
//	defer collector.Stop()
func NewResourceCollector(ctx context.Context, interval time.Duration) *ResourceCollector {
	collectorCtx, cancel := context.WithCancel(ctx)
	return &ResourceCollector{
		ctx:      collectorCtx,
		cancel:   cancel,
		interval: interval,
		started:  time.Now(),
		pools:    make(map[string]PoolStatsFunc),
	}
}

// WatchPool registers a pool to sample under name. Registering a name again
// replaces the previous sampler.
func (rc *ResourceCollector) WatchPool(name string, stats PoolStatsFunc) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.pools[name] = stats
}

// Start collects immediately and then every interval. It blocks until the
// collector is stopped.
func (rc *ResourceCollector) Start() {
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	rc.collect()
	for {
		select {
		case <-rc.ctx.Done():
			return
		case <-ticker.C:
			rc.collect()
		}
	}
}

// Stop halts the collector.
func (rc *ResourceCollector) Stop() {
	rc.cancel()
}

// Collect performs a single sample outside the periodic schedule.
func (rc *ResourceCollector) Collect() {
	rc.collect()
}

func (rc *ResourceCollector) collect() {
	if !IsEnabled() {
		return
	}
	CollectOnce()
	UptimeSeconds.Set(time.Since(rc.started).Seconds())

	rc.mu.Lock()
	defer rc.mu.Unlock()
	for name, stats := range rc.pools {
		PoolAllocatedPages.WithLabelValues(name).Set(float64(stats()))
	}
}

// CollectOnce samples process resources once.
func CollectOnce() {
	if !IsEnabled() {
		return
	}

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	MemoryAllocBytes.Set(float64(memStats.Alloc))
	MemorySysBytes.Set(float64(memStats.Sys))
	GCPauseTotalSeconds.Set(float64(memStats.PauseTotalNs) / 1e9)
}

// StartResourceCollector creates a collector and starts it in the
// background. It stops when ctx is canceled.
func StartResourceCollector(ctx context.Context, interval time.Duration) *ResourceCollector {
	collector := NewResourceCollector(ctx, interval)
	go collector.Start()
	return collector
}
