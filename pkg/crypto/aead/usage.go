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

package aead

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultBytesLimit is the default number of plaintext bytes a single key may
// encrypt before a UsageGuard refuses further use (NIST SP 800-38D bounds
// for random 96-bit IVs).
const DefaultBytesLimit int64 = 350 * 1024 * 1024 * 1024

// UsageGuard tracks how a long-lived content key is used. Keys that are not
// freshly generated per token (JWE "dir") need it: it refuses a repeated IV
// and stops encryption once the byte limit is reached.
type UsageGuard struct {
	mu     sync.Mutex
	nonces map[string]struct{}

	limit int64
	bytes atomic.Int64
}

// NewUsageGuard creates a guard with the given byte limit. A limit of zero
// uses DefaultBytesLimit.
func NewUsageGuard(limit int64) *UsageGuard {
	if limit <= 0 {
		limit = DefaultBytesLimit
	}
	return &UsageGuard{
		nonces: make(map[string]struct{}),
		limit:  limit,
	}
}

// Admit records one encryption of n plaintext bytes under nonce. It fails
// with ErrNonceReuse or ErrUsageLimitExceeded and records nothing on failure.
func (g *UsageGuard) Admit(nonce []byte, n int) error {
	total := g.bytes.Add(int64(n))
	if total > g.limit {
		g.bytes.Add(-int64(n))
		return fmt.Errorf("%w: %d of %d bytes used", ErrUsageLimitExceeded, total-int64(n), g.limit)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, seen := g.nonces[string(nonce)]; seen {
		g.bytes.Add(-int64(n))
		return ErrNonceReuse
	}
	g.nonces[string(nonce)] = struct{}{}
	return nil
}

// BytesEncrypted returns the plaintext bytes admitted so far.
func (g *UsageGuard) BytesEncrypted() int64 {
	return g.bytes.Load()
}

// Remaining returns the bytes left before the limit.
func (g *UsageGuard) Remaining() int64 {
	return g.limit - g.bytes.Load()
}

// NonceCount returns the number of distinct nonces recorded.
func (g *UsageGuard) NonceCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nonces)
}

// ShouldRotate reports whether 90% of the byte limit has been used.
func (g *UsageGuard) ShouldRotate() bool {
	return float64(g.bytes.Load()) >= 0.9*float64(g.limit)
}
