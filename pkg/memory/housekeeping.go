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
	"context"
	"time"

	"github.com/jeremyhahn/go-josekit/pkg/adapters/logger"
	"golang.org/x/time/rate"
)

const (
	// DefaultHousekeepingInterval is how often memory load is sampled.
	DefaultHousekeepingInterval = 30 * time.Second

	// DefaultHighPressureLoad is the memory load regarded as high pressure.
	DefaultHighPressureLoad = 0.90

	// DefaultTrimRatio is the fraction of DefaultHighPressureLoad at which the
	// free queue is cleared.
	DefaultTrimRatio = 0.90

	// pressureBurst bounds how many out-of-band pressure checks may run back
	// to back before throttling kicks in.
	pressureBurst = 2
)

// HousekeepingConfig configures the background trimming task.
type HousekeepingConfig struct {
	// Interval between periodic checks. Zero means DefaultHousekeepingInterval.
	Interval time.Duration

	// HighPressureLoad is the memory load (0..1) treated as high pressure.
	HighPressureLoad float64

	// TrimRatio scales HighPressureLoad into the trim threshold.
	TrimRatio float64

	// MemoryLoad samples the current load. Defaults to SystemMemoryLoad.
	MemoryLoad func() (float64, error)

	// MinNotifyInterval throttles NotifyMemoryPressure. Zero means Interval/10.
	MinNotifyInterval time.Duration
}

// Housekeeper periodically samples memory load and clears the pool's free
// queue when it crosses the trim threshold.
type Housekeeper struct {
	ctx       context.Context
	cancel    context.CancelFunc
	pool      *Pool
	interval  time.Duration
	threshold float64
	load      func() (float64, error)
	notify    chan struct{}
	limiter   *rate.Limiter
	done      chan struct{}
}

func newHousekeeper(ctx context.Context, pool *Pool, config *HousekeepingConfig) *Housekeeper {
	interval := config.Interval
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	high := config.HighPressureLoad
	if high <= 0 || high > 1 {
		high = DefaultHighPressureLoad
	}
	ratio := config.TrimRatio
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultTrimRatio
	}
	load := config.MemoryLoad
	if load == nil {
		load = SystemMemoryLoad
	}
	minNotify := config.MinNotifyInterval
	if minNotify <= 0 {
		minNotify = interval / 10
	}

	hkCtx, cancel := context.WithCancel(ctx)
	return &Housekeeper{
		ctx:       hkCtx,
		cancel:    cancel,
		pool:      pool,
		interval:  interval,
		threshold: high * ratio,
		load:      load,
		notify:    make(chan struct{}, 1),
		limiter:   rate.NewLimiter(rate.Every(minNotify), pressureBurst),
		done:      make(chan struct{}),
	}
}

// Start runs the housekeeping loop until Stop is called. It blocks.
func (h *Housekeeper) Start() {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.CheckOnce()
		case <-h.notify:
			h.CheckOnce()
		}
	}
}

// Notify requests an immediate check. Calls beyond the throttle rate are
// dropped.
func (h *Housekeeper) Notify() {
	if !h.limiter.Allow() {
		return
	}
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// CheckOnce samples memory load and trims the pool if the threshold is
// crossed. It reports whether a trim happened.
func (h *Housekeeper) CheckOnce() bool {
	load, err := h.load()
	if err != nil {
		h.pool.logger.Debug("memory load unavailable", logger.Error(err))
		return false
	}
	if load < h.threshold {
		return false
	}
	n := h.pool.Trim()
	h.pool.logger.Info("memory pressure trim",
		logger.Float64("load", load),
		logger.Float64("threshold", h.threshold),
		logger.Int("released", n))
	return true
}

// Threshold returns the memory load at which the free queue is cleared.
func (h *Housekeeper) Threshold() float64 {
	return h.threshold
}

// Stop halts the loop and waits for it to exit.
func (h *Housekeeper) Stop() {
	h.cancel()
	<-h.done
}
