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

import "errors"

var (
	// ErrPoolDisposed is returned by Rent after the pool has been disposed.
	ErrPoolDisposed = errors.New("memory: pool disposed")

	// ErrInvalidSize is returned for negative lease sizes.
	ErrInvalidSize = errors.New("memory: invalid buffer size")

	// ErrMemoryLoadUnavailable is returned when the platform cannot report
	// memory usage.
	ErrMemoryLoadUnavailable = errors.New("memory: memory load unavailable")
)
