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

// Package jwa defines the algorithm contracts of the JOSE engine and the
// Registry that resolves algorithm codes to implementations.
//
// Algorithms are immutable after construction and safe for concurrent use.
// Buffer-filling operations follow the Try convention: they return
// ok=false with no error when the destination is too small, so the caller
// can retry with a larger buffer.
package jwa

import (
	"errors"

	"github.com/jeremyhahn/go-josekit/pkg/jose/header"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

var (
	// ErrUnsupportedAlgorithm is returned for codes no registered algorithm
	// implements.
	ErrUnsupportedAlgorithm = errors.New("jose: unsupported algorithm")

	// ErrMalformedToken is returned for tokens with the wrong segment count,
	// bad base64url or bad header JSON.
	ErrMalformedToken = errors.New("jose: malformed token")

	// ErrIntegrityCheckFailed is returned when a signature or authentication
	// tag does not verify. No payload accompanies it.
	ErrIntegrityCheckFailed = errors.New("jose: integrity check failed")

	// ErrUnsupportedOperation is returned for operations an algorithm does
	// not define, such as wrapping an existing key under "dir".
	ErrUnsupportedOperation = errors.New("jose: unsupported operation")

	// ErrDuplicateAlgorithm is returned by NewRegistry when two sources
	// provide the same code for the same kind.
	ErrDuplicateAlgorithm = errors.New("jose: duplicate algorithm")
)

// Kind is the family an algorithm belongs to.
type Kind int

const (
	KindSignature Kind = iota + 1
	KindKeyManagement
	KindContentEncryption
	KindCompression
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindSignature:
		return "signature"
	case KindKeyManagement:
		return "key-management"
	case KindContentEncryption:
		return "content-encryption"
	case KindCompression:
		return "compression"
	default:
		return "unknown"
	}
}

// Kinds lists every algorithm kind.
func Kinds() []Kind {
	return []Kind{KindSignature, KindKeyManagement, KindContentEncryption, KindCompression}
}

// Algorithm describes an algorithm implementation.
type Algorithm interface {
	// Code returns the registered JOSE code, such as "HS256" or "A128KW".
	Code() string

	// Kind returns the algorithm family.
	Kind() Kind

	// KeyType returns the SecretKey variant the algorithm accepts.
	// Compression algorithms return secret.KeyTypeUnknown.
	KeyType() secret.KeyType

	// KeyBitSizes returns the legal key sizes in bits.
	KeyBitSizes() []secret.KeySizes
}

// SignatureAlgorithm produces and checks JWS signatures.
type SignatureAlgorithm interface {
	Algorithm

	// SignatureSizeBytes returns the signature length for a key of
	// keySizeBits.
	SignatureSizeBytes(keySizeBits int) int

	// TrySign signs data into dst.
	TrySign(key secret.SecretKey, data, dst []byte) (n int, ok bool, err error)

	// Verify reports whether signature is valid for data. A wrong key
	// variant or size is an error; a bad signature is false.
	Verify(key secret.SecretKey, data, signature []byte) (bool, error)
}

// KeyManagementAlgorithm produces, wraps and recovers JWE content
// encryption keys.
type KeyManagementAlgorithm interface {
	Algorithm

	// LegalCEKByteSizes returns the CEK sizes in bytes the algorithm can
	// protect with a KEK of kekSizeBits.
	LegalCEKByteSizes(kekSizeBits int) []secret.KeySizes

	// EncryptedCEKSizeBytes returns the JWE Encrypted Key length.
	EncryptedCEKSizeBytes(kekSizeBits, cekSizeBytes int) int

	// TryWrapKey encrypts an existing cek into dst.
	TryWrapKey(kek secret.SecretKey, h *header.Header, cek, dst []byte) (n int, ok bool, err error)

	// TryWrapNewKey fills cek with a new content key, generated or
	// derived, and writes its encrypted form into dst. len(cek) is the
	// content key size.
	TryWrapNewKey(kek secret.SecretKey, h *header.Header, cek, dst []byte) (n int, ok bool, err error)

	// TryUnwrapKey recovers the content key into cek. Algorithms that
	// derive the key produce exactly len(cek) bytes.
	TryUnwrapKey(kek secret.SecretKey, h *header.Header, encryptedCEK, cek []byte) (n int, ok bool, err error)
}

// ContentEncryptionAlgorithm is a JWE "enc" algorithm.
type ContentEncryptionAlgorithm interface {
	Algorithm

	// CEKSizeBytes returns the content key length.
	CEKSizeBytes() int

	// IVSizeBytes returns the initialization vector length.
	IVSizeBytes() int

	// Encrypt seals plaintext under cek, authenticating aad.
	Encrypt(cek, iv, plaintext, aad []byte) (ciphertext, tag []byte, err error)

	// Decrypt verifies tag and returns the plaintext.
	Decrypt(cek, iv, ciphertext, tag, aad []byte) ([]byte, error)
}

// CompressionAlgorithm is a JWE "zip" algorithm.
type CompressionAlgorithm interface {
	Algorithm

	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}
