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
	"crypto/rand"
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/memory"
)

// SymmetricSecretKey is raw key bytes held in a pinned buffer.
type SymmetricSecretKey struct {
	buf  *memory.SecureBuffer
	bits int
}

// NewSymmetricKey copies raw into a buffer rented from pool. A nil pool uses
// memory.Shared. The caller keeps ownership of raw.
func NewSymmetricKey(pool *memory.Pool, raw []byte) (*SymmetricSecretKey, error) {
	if pool == nil {
		pool = memory.Shared()
	}
	buf, err := pool.Rent(len(raw))
	if err != nil {
		return nil, fmt.Errorf("secret: rent key buffer: %w", err)
	}
	copy(buf.Bytes(), raw)
	return &SymmetricSecretKey{buf: buf, bits: len(raw) * 8}, nil
}

// NewSymmetricKeyFromBuffer takes ownership of buf. The key disposes it.
func NewSymmetricKeyFromBuffer(buf *memory.SecureBuffer) (*SymmetricSecretKey, error) {
	if buf == nil || buf.IsDisposed() {
		return nil, ErrInvalidKey
	}
	return &SymmetricSecretKey{buf: buf, bits: buf.Len() * 8}, nil
}

// GenerateSymmetricKey creates a random key of the given size. bits must be
// a positive multiple of 8.
func GenerateSymmetricKey(pool *memory.Pool, bits int) (*SymmetricSecretKey, error) {
	if bits <= 0 || bits%8 != 0 {
		return nil, fmt.Errorf("%w: %d bits", ErrInvalidKeySize, bits)
	}
	if pool == nil {
		pool = memory.Shared()
	}
	buf, err := pool.Rent(bits / 8)
	if err != nil {
		return nil, fmt.Errorf("secret: rent key buffer: %w", err)
	}
	if _, err := rand.Read(buf.Bytes()); err != nil {
		buf.Dispose()
		return nil, fmt.Errorf("secret: generate key: %w", err)
	}
	return &SymmetricSecretKey{buf: buf, bits: bits}, nil
}

// KeyType returns KeyTypeSymmetric.
func (k *SymmetricSecretKey) KeyType() KeyType { return KeyTypeSymmetric }

// KeySizeBits returns the key length in bits.
func (k *SymmetricSecretKey) KeySizeBits() int { return k.bits }

// KeySizeBytes returns the key length in bytes.
func (k *SymmetricSecretKey) KeySizeBytes() int { return k.bits / 8 }

// Bytes returns a borrowed view of the key. It is valid until Dispose and
// must not be retained.
func (k *SymmetricSecretKey) Bytes() []byte {
	return k.buf.Bytes()
}

// TryExportKey copies the raw key bytes into dst.
func (k *SymmetricSecretKey) TryExportKey(dst []byte) (int, bool, error) {
	if k.buf.IsDisposed() {
		return 0, false, ErrKeyDisposed
	}
	src := k.buf.Bytes()
	if len(dst) < len(src) {
		return 0, false, nil
	}
	return copy(dst, src), true, nil
}

// IsDisposed reports whether Dispose has been called.
func (k *SymmetricSecretKey) IsDisposed() bool {
	return k.buf.IsDisposed()
}

// Dispose zeroes the key bytes and returns the buffer to its pool.
func (k *SymmetricSecretKey) Dispose() {
	k.buf.Dispose()
}
