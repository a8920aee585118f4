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

// Package secret provides typed wrappers around symmetric and asymmetric key
// material.
//
// A SecretKey exclusively owns its material until Dispose. Symmetric keys
// live in a pinned buffer rented from a memory.Pool and are zeroed on
// disposal. Asymmetric keys wrap a native Go key handle which is either owned
// (scrubbed and closed on Dispose) or borrowed (left untouched).
package secret

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidKeyType is returned when a key is not the variant an
	// algorithm requires.
	ErrInvalidKeyType = errors.New("secret: invalid key type")

	// ErrInvalidKeySize is returned when a key size falls outside every
	// legal range.
	ErrInvalidKeySize = errors.New("secret: invalid key size")

	// ErrKeyDisposed is returned when using a key after Dispose.
	ErrKeyDisposed = errors.New("secret: key disposed")

	// ErrNotExportable is returned by TryExportKey for handles that cannot be
	// serialized, such as hardware-backed signers.
	ErrNotExportable = errors.New("secret: key not exportable")

	// ErrInvalidKey is returned for nil or otherwise unusable key handles.
	ErrInvalidKey = errors.New("secret: invalid key")
)

// KeyType identifies the concrete SecretKey variant.
type KeyType int

const (
	KeyTypeUnknown KeyType = iota
	KeyTypeSymmetric
	KeyTypeRSA
	KeyTypeECC
)

// String returns the string representation of the key type
func (t KeyType) String() string {
	switch t {
	case KeyTypeSymmetric:
		return "symmetric"
	case KeyTypeRSA:
		return "rsa"
	case KeyTypeECC:
		return "ecc"
	default:
		return "unknown"
	}
}

// SecretKey is key material an algorithm operates on.
type SecretKey interface {
	// KeyType returns the concrete variant.
	KeyType() KeyType

	// KeySizeBits returns the key size in bits. It never changes.
	KeySizeBits() int

	// KeySizeBytes returns KeySizeBits/8, rounded down.
	KeySizeBytes() int

	// TryExportKey writes the key's serialized form into dst. It returns
	// ok=false with no error when dst is too small.
	TryExportKey(dst []byte) (n int, ok bool, err error)

	// Dispose zeroes and releases owned material. Safe to call repeatedly.
	Dispose()
}

// Unbounded is the MaxSize of a range with no upper limit.
const Unbounded = math.MaxInt32

// KeySizes is a legal range of key sizes in bits. A SkipSize of zero means
// MinSize is the only legal size; otherwise every MinSize + k*SkipSize up to
// MaxSize is legal.
type KeySizes struct {
	MinSize  int
	MaxSize  int
	SkipSize int
}

// Fixed returns a range holding a single legal size.
func Fixed(bits int) KeySizes {
	return KeySizes{MinSize: bits, MaxSize: bits}
}

// Contains reports whether bits is a legal size within the range.
func (k KeySizes) Contains(bits int) bool {
	if bits < k.MinSize || bits > k.MaxSize {
		return false
	}
	if k.SkipSize == 0 {
		return bits == k.MinSize
	}
	return (bits-k.MinSize)%k.SkipSize == 0
}

// String returns the string representation of the range
func (k KeySizes) String() string {
	switch {
	case k.SkipSize == 0:
		return fmt.Sprintf("%d", k.MinSize)
	case k.MaxSize == Unbounded:
		return fmt.Sprintf("%d+ (step %d)", k.MinSize, k.SkipSize)
	default:
		return fmt.Sprintf("%d-%d (step %d)", k.MinSize, k.MaxSize, k.SkipSize)
	}
}

// IsLegalSize reports whether bits falls within any of the ranges.
func IsLegalSize(bits int, legal []KeySizes) bool {
	for _, r := range legal {
		if r.Contains(bits) {
			return true
		}
	}
	return false
}

// Validate checks that key is the variant T, that it has not been disposed
// and that its size is within one of the legal ranges. An empty legal set
// accepts any size.
func Validate[T SecretKey](key SecretKey, legal []KeySizes) (T, error) {
	var zero T
	if key == nil {
		return zero, fmt.Errorf("%w: expected %T, got nil", ErrInvalidKeyType, zero)
	}
	typed, ok := key.(T)
	if !ok {
		return zero, fmt.Errorf("%w: expected %T, got %T", ErrInvalidKeyType, zero, key)
	}
	if d, ok := key.(interface{ IsDisposed() bool }); ok && d.IsDisposed() {
		return zero, ErrKeyDisposed
	}
	if len(legal) > 0 && !IsLegalSize(key.KeySizeBits(), legal) {
		return zero, fmt.Errorf("%w: %d bits not in %v", ErrInvalidKeySize, key.KeySizeBits(), legal)
	}
	return typed, nil
}
