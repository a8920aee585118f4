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

package kdf

import (
	"encoding/binary"
	"math"
)

// ConcatKDFAdapter implements the single-step Concat KDF used by ECDH-ES
// (RFC 7518 section 4.6.2).
//
// For counter = 1..ceil(keyLen/hashLen) each round computes
//
//	Hash(BE32(counter) || Z || OtherInfo)
//
// and the concatenated rounds are truncated to keyLen. OtherInfo is
// AlgorithmID, PartyUInfo and PartyVInfo, each prefixed with its 32-bit
// big-endian length, followed by SuppPubInfo = BE32(keyLen * 8).
type ConcatKDFAdapter struct{}

// NewConcatKDFAdapter creates a new Concat KDF adapter
func NewConcatKDFAdapter() *ConcatKDFAdapter {
	return &ConcatKDFAdapter{}
}

// DeriveKey derives a key from the shared secret Z.
func (c *ConcatKDFAdapter) DeriveKey(z []byte, params *KDFParams) ([]byte, error) {
	if err := c.ValidateParams(params); err != nil {
		return nil, err
	}
	out := make([]byte, params.KeyLength)
	if err := c.DeriveKeyInto(out, z, params); err != nil {
		return nil, err
	}
	return out, nil
}

// DeriveKeyInto derives len(dst) bytes from the shared secret Z into dst.
func (c *ConcatKDFAdapter) DeriveKeyInto(dst, z []byte, params *KDFParams) error {
	if err := c.ValidateParams(params); err != nil {
		return err
	}
	if params.KeyLength != len(dst) {
		return ErrInvalidKeyLength
	}
	if len(z) == 0 {
		return ErrInvalidIKM
	}

	h := params.Hash.New()
	var word [4]byte
	writePrefixed := func(b []byte) {
		binary.BigEndian.PutUint32(word[:], uint32(len(b)))
		h.Write(word[:])
		h.Write(b)
	}

	digest := make([]byte, 0, h.Size())
	defer clear(digest[:cap(digest)])

	for counter, off := uint32(1), 0; off < len(dst); counter++ {
		h.Reset()
		binary.BigEndian.PutUint32(word[:], counter)
		h.Write(word[:])
		h.Write(z)
		writePrefixed(params.AlgorithmID)
		writePrefixed(params.PartyUInfo)
		writePrefixed(params.PartyVInfo)
		binary.BigEndian.PutUint32(word[:], uint32(params.KeyLength*8))
		h.Write(word[:])

		digest = h.Sum(digest[:0])
		off += copy(dst[off:], digest)
	}
	return nil
}

// Algorithm returns the KDF algorithm
func (c *ConcatKDFAdapter) Algorithm() KDFAlgorithm {
	return AlgorithmConcat
}

// ValidateParams validates Concat KDF parameters
func (c *ConcatKDFAdapter) ValidateParams(params *KDFParams) error {
	if params == nil {
		return ErrInvalidKeyLength
	}

	if params.Algorithm != AlgorithmConcat {
		return ErrUnsupportedAlgorithm
	}

	// keydatalen is carried in bits as a 32-bit value.
	if params.KeyLength <= 0 || params.KeyLength > math.MaxUint32/8 {
		return ErrInvalidKeyLength
	}

	return validateHash(params.Hash)
}
