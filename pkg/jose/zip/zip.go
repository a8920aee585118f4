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

// Package zip implements the JWE "zip" compression algorithms: raw DEFLATE
// (RFC 1951) as "DEF" and a pass-through "none".
package zip

import (
	"bytes"
	"compress/flate"
	"errors"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

const (
	// Deflate is the "zip" value for raw DEFLATE.
	Deflate = "DEF"

	// None never appears on the wire; it is the code of the pass-through
	// algorithm used when no compression is requested.
	None = "none"

	// DefaultMaxDecompressedSize caps inflated output.
	DefaultMaxDecompressedSize = 16 << 20
)

// ErrDecompressedTooLarge is returned when inflating would exceed the
// configured limit.
var ErrDecompressedTooLarge = errors.New("zip: decompressed size exceeds limit")

// DeflateCompression is raw DEFLATE with no zlib or gzip framing.
type DeflateCompression struct {
	jwa.Descriptor
	level   int
	maxSize int
}

// NewDeflate returns "DEF". maxDecompressedSize <= 0 uses
// DefaultMaxDecompressedSize.
func NewDeflate(maxDecompressedSize int) *DeflateCompression {
	if maxDecompressedSize <= 0 {
		maxDecompressedSize = DefaultMaxDecompressedSize
	}
	return &DeflateCompression{
		Descriptor: jwa.NewDescriptor(Deflate, jwa.KindCompression, secret.KeyTypeUnknown),
		level:      flate.DefaultCompression,
		maxSize:    maxDecompressedSize,
	}
}

// MaxDecompressedSize returns the inflate limit in bytes.
func (d *DeflateCompression) MaxDecompressedSize() int { return d.maxSize }

func (d *DeflateCompression) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, d.level)
	if err != nil {
		return nil, fmt.Errorf("zip: deflate: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("zip: deflate: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zip: deflate: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *DeflateCompression) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, int64(d.maxSize)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: inflate: %w", jwa.ErrMalformedToken, err)
	}
	if len(out) > d.maxSize {
		clear(out)
		return nil, fmt.Errorf("%w: %w", jwa.ErrMalformedToken, ErrDecompressedTooLarge)
	}
	return out, nil
}

// NoCompression passes data through unchanged.
type NoCompression struct {
	jwa.Descriptor
}

// NewNone returns the pass-through algorithm.
func NewNone() *NoCompression {
	return &NoCompression{jwa.NewDescriptor(None, jwa.KindCompression, secret.KeyTypeUnknown)}
}

func (NoCompression) Compress(data []byte) ([]byte, error)   { return data, nil }
func (NoCompression) Decompress(data []byte) ([]byte, error) { return data, nil }

// Source provides "DEF" and "none".
func Source(maxDecompressedSize int) jwa.DataSource {
	return jwa.Algorithms(NewDeflate(maxDecompressedSize), NewNone())
}
