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

// Package wrapping provides the key wrapping primitives used by JOSE key
// management: AES Key Wrap (RFC 3394) and RSA-OAEP key transport.
//
// All AES-KW functions write into caller-supplied buffers so unwrapped
// content keys can be kept in pinned memory.
package wrapping

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha1"
	_ "crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
)

// KeyWrapOverhead is the number of bytes AES-KW adds to the wrapped key.
const KeyWrapOverhead = 8

// defaultIV is the RFC 3394 section 2.2.3.1 initial value.
var defaultIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

var (
	// ErrIntegrityCheckFailed is returned when an unwrapped key fails the
	// AES-KW integrity check or RSA-OAEP decryption fails
	ErrIntegrityCheckFailed = errors.New("wrapping: integrity check failed")

	// ErrInvalidKEK is returned for key encryption keys of illegal length
	ErrInvalidKEK = errors.New("wrapping: invalid key encryption key")

	// ErrInvalidInput is returned for key data AES-KW cannot process
	ErrInvalidInput = errors.New("wrapping: invalid key data")

	// ErrBufferTooSmall is returned when dst cannot hold the output
	ErrBufferTooSmall = errors.New("wrapping: destination buffer too small")
)

// WrappingAlgorithm selects the RSA-OAEP hash
type WrappingAlgorithm string

const (
	// WrappingAlgorithmRSAES_OAEP_SHA_1 is RSA-OAEP with SHA-1 and MGF1-SHA-1 (JOSE "RSA-OAEP")
	WrappingAlgorithmRSAES_OAEP_SHA_1 WrappingAlgorithm = "RSAES_OAEP_SHA_1"

	// WrappingAlgorithmRSAES_OAEP_SHA_256 is RSA-OAEP with SHA-256 and MGF1-SHA-256 (JOSE "RSA-OAEP-256")
	WrappingAlgorithmRSAES_OAEP_SHA_256 WrappingAlgorithm = "RSAES_OAEP_SHA_256"
)

// GetHashForAlgorithm returns the hash used by an RSA-OAEP wrapping algorithm
func GetHashForAlgorithm(algorithm WrappingAlgorithm) (crypto.Hash, error) {
	switch algorithm {
	case WrappingAlgorithmRSAES_OAEP_SHA_1:
		return crypto.SHA1, nil
	case WrappingAlgorithmRSAES_OAEP_SHA_256:
		return crypto.SHA256, nil
	default:
		return 0, fmt.Errorf("unsupported wrapping algorithm: %s", algorithm)
	}
}

// WrapAESKW wraps cek under kek with AES Key Wrap (RFC 3394) into dst and
// returns the number of bytes written, always len(cek)+KeyWrapOverhead.
//
// kek must be 16, 24 or 32 bytes. cek must be at least 16 bytes and a
// multiple of 8. dst must not overlap cek.
func WrapAESKW(dst, kek, cek []byte) (int, error) {
	if len(cek) < 16 || len(cek)%8 != 0 {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidInput, len(cek))
	}
	out := len(cek) + KeyWrapOverhead
	if len(dst) < out {
		return 0, ErrBufferTooSmall
	}
	block, err := newCipher(kek)
	if err != nil {
		return 0, err
	}

	n := len(cek) / 8
	a := defaultIV
	r := dst[8:out]
	copy(r, cek)

	var b [16]byte
	defer clear(b[:])
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			// B = AES(K, A | R[i])
			copy(b[:8], a[:])
			copy(b[8:], r[(i-1)*8:i*8])
			block.Encrypt(b[:], b[:])

			// A = MSB(64, B) ^ t where t = (n*j)+i
			t := uint64(n*j + i)
			binary.BigEndian.PutUint64(a[:], binary.BigEndian.Uint64(b[:8])^t)

			// R[i] = LSB(64, B)
			copy(r[(i-1)*8:i*8], b[8:])
		}
	}
	copy(dst[:8], a[:])
	return out, nil
}

// UnwrapAESKW unwraps an RFC 3394 wrapped key into dst and returns the
// number of bytes written, always len(wrapped)-KeyWrapOverhead. On an
// integrity failure dst is zeroed and ErrIntegrityCheckFailed returned.
func UnwrapAESKW(dst, kek, wrapped []byte) (int, error) {
	if len(wrapped) < 24 || len(wrapped)%8 != 0 {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidInput, len(wrapped))
	}
	out := len(wrapped) - KeyWrapOverhead
	if len(dst) < out {
		return 0, ErrBufferTooSmall
	}
	block, err := newCipher(kek)
	if err != nil {
		return 0, err
	}

	n := out / 8
	var a [8]byte
	copy(a[:], wrapped[:8])
	r := dst[:out]
	copy(r, wrapped[8:])

	var b [16]byte
	defer clear(b[:])
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			// B = AES-1(K, (A ^ t) | R[i]) where t = n*j+i
			t := uint64(n*j + i)
			binary.BigEndian.PutUint64(b[:8], binary.BigEndian.Uint64(a[:])^t)
			copy(b[8:], r[(i-1)*8:i*8])
			block.Decrypt(b[:], b[:])

			// A = MSB(64, B)
			copy(a[:], b[:8])

			// R[i] = LSB(64, B)
			copy(r[(i-1)*8:i*8], b[8:])
		}
	}

	if subtle.ConstantTimeCompare(a[:], defaultIV[:]) != 1 {
		clear(r)
		return 0, ErrIntegrityCheckFailed
	}
	return out, nil
}

func newCipher(kek []byte) (cipher.Block, error) {
	switch len(kek) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKEK, len(kek))
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	return block, nil
}

// WrapRSAOAEP wraps key material using RSA-OAEP encryption.
// The algorithm parameter specifies which hash function to use (SHA-1 or SHA-256).
//
// Parameters:
//   - keyMaterial: The plaintext key material to wrap (must fit within RSA key size limits)
//   - publicKey: The RSA public key to use for wrapping
//   - algorithm: Must be WrappingAlgorithmRSAES_OAEP_SHA_1 or WrappingAlgorithmRSAES_OAEP_SHA_256
func WrapRSAOAEP(keyMaterial []byte, publicKey *rsa.PublicKey, algorithm WrappingAlgorithm) ([]byte, error) {
	if len(keyMaterial) == 0 {
		return nil, fmt.Errorf("key material cannot be nil or empty")
	}
	if publicKey == nil {
		return nil, fmt.Errorf("public key cannot be nil")
	}

	hash, err := GetHashForAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}

	wrapped, err := rsa.EncryptOAEP(hash.New(), rand.Reader, publicKey, keyMaterial, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap key material with RSA-OAEP: %w", err)
	}
	return wrapped, nil
}

// UnwrapRSAOAEPInto unwraps RSA-OAEP encrypted key material into dst using
// any crypto.Decrypter holding the RSA private key, so keys held by an HSM
// work as well as in-memory keys. It returns the number of bytes written.
//
// Decryption failures are reported as ErrIntegrityCheckFailed without
// further detail.
func UnwrapRSAOAEPInto(dst, wrappedKey []byte, decrypter crypto.Decrypter, algorithm WrappingAlgorithm) (int, error) {
	if len(wrappedKey) == 0 {
		return 0, fmt.Errorf("wrapped key cannot be nil or empty")
	}
	if decrypter == nil {
		return 0, fmt.Errorf("private key cannot be nil")
	}

	hash, err := GetHashForAlgorithm(algorithm)
	if err != nil {
		return 0, err
	}

	plain, err := decrypter.Decrypt(rand.Reader, wrappedKey, &rsa.OAEPOptions{Hash: hash, MGFHash: hash})
	if err != nil {
		return 0, ErrIntegrityCheckFailed
	}
	defer clear(plain)

	if len(dst) < len(plain) {
		return 0, ErrBufferTooSmall
	}
	return copy(dst, plain), nil
}
