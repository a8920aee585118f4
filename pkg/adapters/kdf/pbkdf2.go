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
	_ "crypto/sha256"
	_ "crypto/sha512"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// MinPBKDF2Iterations is the smallest iteration count accepted, per
	// RFC 7518 section 4.8.1.2
	MinPBKDF2Iterations = 1000

	// DefaultPBKDF2Iterations is used when no count is supplied
	DefaultPBKDF2Iterations = 310000

	// MinPBKDF2SaltLength is the minimum salt length in bytes, per RFC 7518
	// section 4.8.1.1
	MinPBKDF2SaltLength = 8
)

// PBKDF2Adapter implements the KDFAdapter interface using PBKDF2 (RFC 2898)
// PBKDF2 is suitable for deriving keys from passwords
type PBKDF2Adapter struct{}

// NewPBKDF2Adapter creates a new PBKDF2 adapter
func NewPBKDF2Adapter() *PBKDF2Adapter {
	return &PBKDF2Adapter{}
}

// DeriveKey derives a key using PBKDF2
func (p *PBKDF2Adapter) DeriveKey(ikm []byte, params *KDFParams) ([]byte, error) {
	if err := p.ValidateParams(params); err != nil {
		return nil, err
	}

	if len(ikm) == 0 {
		return nil, ErrInvalidIKM
	}

	return pbkdf2.Key(ikm, params.Salt, params.Iterations, params.KeyLength, params.Hash.New), nil
}

// DeriveKeyInto derives a key using PBKDF2 into dst. The intermediate
// heap copy produced by the PBKDF2 implementation is zeroed.
func (p *PBKDF2Adapter) DeriveKeyInto(dst, ikm []byte, params *KDFParams) error {
	if params != nil && params.KeyLength != len(dst) {
		return ErrInvalidKeyLength
	}
	key, err := p.DeriveKey(ikm, params)
	if err != nil {
		return err
	}
	copy(dst, key)
	clear(key)
	return nil
}

// Algorithm returns the KDF algorithm
func (p *PBKDF2Adapter) Algorithm() KDFAlgorithm {
	return AlgorithmPBKDF2
}

// ValidateParams validates PBKDF2 parameters
func (p *PBKDF2Adapter) ValidateParams(params *KDFParams) error {
	if params == nil {
		return ErrInvalidKeyLength
	}

	if params.Algorithm != AlgorithmPBKDF2 {
		return ErrUnsupportedAlgorithm
	}

	if params.KeyLength <= 0 {
		return ErrInvalidKeyLength
	}

	if len(params.Salt) < MinPBKDF2SaltLength {
		return ErrInvalidSalt
	}

	if params.Iterations < MinPBKDF2Iterations {
		return ErrInvalidIterations
	}

	return validateHash(params.Hash)
}
