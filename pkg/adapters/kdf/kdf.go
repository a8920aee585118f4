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

// Package kdf provides the key derivation functions used by JOSE key
// management: PBKDF2 for PBES2 and the Concat KDF for ECDH-ES.
package kdf

import (
	"crypto"
	"errors"
)

// KDFAlgorithm represents the key derivation function algorithm type
type KDFAlgorithm string

const (
	// AlgorithmPBKDF2 represents Password-Based Key Derivation Function 2 (RFC 2898)
	AlgorithmPBKDF2 KDFAlgorithm = "PBKDF2"

	// AlgorithmConcat represents the NIST SP 800-56A single-step Concat KDF
	// as profiled by RFC 7518 section 4.6.2
	AlgorithmConcat KDFAlgorithm = "ConcatKDF"
)

// String returns the string representation of the KDF algorithm
func (a KDFAlgorithm) String() string {
	return string(a)
}

// KDFParams contains parameters for key derivation
type KDFParams struct {
	// Algorithm specifies which KDF algorithm to use
	Algorithm KDFAlgorithm

	// Salt is the PBKDF2 salt input (PBKDF2 only)
	Salt []byte

	// Iterations specifies the number of iterations (PBKDF2 only)
	Iterations int

	// AlgorithmID is the raw AlgorithmID value, before length prefixing (Concat only)
	AlgorithmID []byte

	// PartyUInfo is the producer information, usually the decoded "apu" (Concat only)
	PartyUInfo []byte

	// PartyVInfo is the recipient information, usually the decoded "apv" (Concat only)
	PartyVInfo []byte

	// KeyLength is the desired output key length in bytes
	KeyLength int

	// Hash is the hash function to use
	Hash crypto.Hash
}

// KDFAdapter is the interface for key derivation function adapters
type KDFAdapter interface {
	// DeriveKey derives a key from the input key material using the specified parameters
	// Returns the derived key or an error if derivation fails
	DeriveKey(ikm []byte, params *KDFParams) ([]byte, error)

	// DeriveKeyInto derives exactly len(dst) bytes into dst. params.KeyLength
	// must equal len(dst). Used with pooled buffers so derived keys never
	// live on the Go heap longer than the call.
	DeriveKeyInto(dst, ikm []byte, params *KDFParams) error

	// Algorithm returns the KDF algorithm this adapter implements
	Algorithm() KDFAlgorithm

	// ValidateParams validates the KDF parameters for this algorithm
	// Returns an error if parameters are invalid or incompatible
	ValidateParams(params *KDFParams) error
}

// Common errors
var (
	// ErrInvalidSalt indicates the salt is invalid (nil, empty, or too short)
	ErrInvalidSalt = errors.New("kdf: invalid salt")

	// ErrInvalidKeyLength indicates the requested key length is invalid
	ErrInvalidKeyLength = errors.New("kdf: invalid key length")

	// ErrInvalidIterations indicates the iteration count is invalid
	ErrInvalidIterations = errors.New("kdf: invalid iterations")

	// ErrInvalidHash indicates the hash function is invalid or not supported
	ErrInvalidHash = errors.New("kdf: invalid or unsupported hash function")

	// ErrInvalidIKM indicates the input key material is invalid
	ErrInvalidIKM = errors.New("kdf: invalid input key material")

	// ErrUnsupportedAlgorithm indicates the algorithm is not supported by this adapter
	ErrUnsupportedAlgorithm = errors.New("kdf: unsupported algorithm")
)

// DefaultParams returns recommended default parameters for each KDF algorithm
func DefaultParams(algorithm KDFAlgorithm) *KDFParams {
	switch algorithm {
	case AlgorithmPBKDF2:
		return &KDFParams{
			Algorithm:  AlgorithmPBKDF2,
			Iterations: DefaultPBKDF2Iterations,
			KeyLength:  16,
			Hash:       crypto.SHA256,
		}
	case AlgorithmConcat:
		return &KDFParams{
			Algorithm: AlgorithmConcat,
			KeyLength: 16,
			Hash:      crypto.SHA256,
		}
	default:
		return nil
	}
}

// validateHash checks that h is set and linked into the binary.
func validateHash(h crypto.Hash) error {
	if h == 0 || !h.Available() {
		return ErrInvalidHash
	}
	return nil
}
