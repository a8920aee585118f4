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

package secret

import (
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/memory"
)

// MaxExportSize bounds the buffer ExportKey will grow to.
const MaxExportSize = 1 << 20

// ExportKey exports key into a buffer rented from pool, doubling the buffer
// until TryExportKey succeeds. The returned lease is exactly as long as the
// export; the caller disposes it.
func ExportKey(pool *memory.Pool, key SecretKey) (*memory.SecureBuffer, error) {
	if key == nil {
		return nil, ErrInvalidKey
	}
	if pool == nil {
		pool = memory.Shared()
	}

	size := max(key.KeySizeBytes(), 64)
	for size <= MaxExportSize {
		scratch, err := pool.Rent(size)
		if err != nil {
			return nil, err
		}
		n, ok, err := key.TryExportKey(scratch.Bytes())
		if err != nil {
			scratch.Dispose()
			return nil, err
		}
		if !ok {
			scratch.Dispose()
			size *= 2
			continue
		}
		if n == size {
			return scratch, nil
		}
		out, err := pool.Rent(n)
		if err != nil {
			scratch.Dispose()
			return nil, err
		}
		copy(out.Bytes(), scratch.Bytes()[:n])
		scratch.Dispose()
		return out, nil
	}
	return nil, fmt.Errorf("secret: export exceeds %d bytes", MaxExportSize)
}
