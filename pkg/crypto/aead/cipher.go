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

// Package aead implements the JWE content encryption ciphers of RFC 7518
// section 5: AES-GCM and the AES-CBC-HMAC-SHA2 composites.
//
// Ciphers borrow the content key for the duration of a call and never
// retain it, so keys can live in pinned pool buffers.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"hash"
	"slices"
)

// Content encryption codes.
const (
	A128GCM      = "A128GCM"
	A192GCM      = "A192GCM"
	A256GCM      = "A256GCM"
	A128CBCHS256 = "A128CBC-HS256"
	A192CBCHS384 = "A192CBC-HS384"
	A256CBCHS512 = "A256CBC-HS512"
)

const (
	gcmNonceSize = 12
	gcmTagSize   = 16
)

// Cipher is an authenticated content cipher.
type Cipher interface {
	// Code returns the JWE "enc" value.
	Code() string

	// KeySize returns the content key length in bytes.
	KeySize() int

	// NonceSize returns the IV length in bytes.
	NonceSize() int

	// TagSize returns the authentication tag length in bytes.
	TagSize() int

	// Seal encrypts plaintext and authenticates it together with aad.
	Seal(key, nonce, plaintext, aad []byte) (ciphertext, tag []byte, err error)

	// Open verifies tag and decrypts ciphertext. Plaintext is only returned
	// when the tag verifies.
	Open(key, nonce, ciphertext, tag, aad []byte) ([]byte, error)
}

var ciphers = map[string]Cipher{
	A128GCM:      gcmCipher{code: A128GCM, keySize: 16},
	A192GCM:      gcmCipher{code: A192GCM, keySize: 24},
	A256GCM:      gcmCipher{code: A256GCM, keySize: 32},
	A128CBCHS256: cbcHMACCipher{code: A128CBCHS256, keySize: 32, hash: sha256.New},
	A192CBCHS384: cbcHMACCipher{code: A192CBCHS384, keySize: 48, hash: sha512.New384},
	A256CBCHS512: cbcHMACCipher{code: A256CBCHS512, keySize: 64, hash: sha512.New},
}

// ByCode returns the cipher registered for an "enc" value.
func ByCode(code string) (Cipher, bool) {
	c, ok := ciphers[code]
	return c, ok
}

// Codes returns every supported content encryption code, sorted.
func Codes() []string {
	codes := make([]string, 0, len(ciphers))
	for code := range ciphers {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// NewNonce returns a random IV sized for c.
func NewNonce(c Cipher) ([]byte, error) {
	nonce := make([]byte, c.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("aead: generate nonce: %w", err)
	}
	return nonce, nil
}

type gcmCipher struct {
	code    string
	keySize int
}

func (c gcmCipher) Code() string   { return c.code }
func (c gcmCipher) KeySize() int   { return c.keySize }
func (c gcmCipher) NonceSize() int { return gcmNonceSize }
func (c gcmCipher) TagSize() int   { return gcmTagSize }

func (c gcmCipher) aead(key, nonce []byte) (cipher.AEAD, error) {
	if len(key) != c.keySize {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidKeySize, c.code, c.keySize, len(key))
	}
	if len(nonce) != gcmNonceSize {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidNonce, c.code, gcmNonceSize, len(nonce))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aead: %w", err)
	}
	return cipher.NewGCM(block)
}

func (c gcmCipher) Seal(key, nonce, plaintext, aad []byte) ([]byte, []byte, error) {
	g, err := c.aead(key, nonce)
	if err != nil {
		return nil, nil, err
	}
	sealed := g.Seal(nil, nonce, plaintext, aad)
	split := len(sealed) - gcmTagSize
	return sealed[:split:split], sealed[split:], nil
}

func (c gcmCipher) Open(key, nonce, ciphertext, tag, aad []byte) ([]byte, error) {
	g, err := c.aead(key, nonce)
	if err != nil {
		return nil, err
	}
	if len(tag) != gcmTagSize {
		return nil, ErrAuthenticationFailed
	}
	sealed := make([]byte, 0, len(ciphertext)+gcmTagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := g.Open(sealed[:0], nonce, sealed, aad)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// cbcHMACCipher is AES-CBC with PKCS#7 padding followed by HMAC-SHA2 over
// AAD || IV || ciphertext || AL, truncated to half the hash output. The first
// half of the key is the MAC key, the second half the encryption key.
type cbcHMACCipher struct {
	code    string
	keySize int
	hash    func() hash.Hash
}

func (c cbcHMACCipher) Code() string   { return c.code }
func (c cbcHMACCipher) KeySize() int   { return c.keySize }
func (c cbcHMACCipher) NonceSize() int { return aes.BlockSize }
func (c cbcHMACCipher) TagSize() int   { return c.keySize / 2 }

func (c cbcHMACCipher) split(key, nonce []byte) (macKey []byte, block cipher.Block, err error) {
	if len(key) != c.keySize {
		return nil, nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidKeySize, c.code, c.keySize, len(key))
	}
	if len(nonce) != aes.BlockSize {
		return nil, nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidNonce, c.code, aes.BlockSize, len(nonce))
	}
	half := c.keySize / 2
	block, err = aes.NewCipher(key[half:])
	if err != nil {
		return nil, nil, fmt.Errorf("aead: %w", err)
	}
	return key[:half], block, nil
}

func (c cbcHMACCipher) tag(macKey, nonce, ciphertext, aad []byte) []byte {
	var al [8]byte
	binary.BigEndian.PutUint64(al[:], uint64(len(aad))*8)

	mac := hmac.New(c.hash, macKey)
	mac.Write(aad)
	mac.Write(nonce)
	mac.Write(ciphertext)
	mac.Write(al[:])
	return mac.Sum(nil)[:c.TagSize()]
}

func (c cbcHMACCipher) Seal(key, nonce, plaintext, aad []byte) ([]byte, []byte, error) {
	macKey, block, err := c.split(key, nonce)
	if err != nil {
		return nil, nil, err
	}
	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	ciphertext := make([]byte, len(plaintext)+pad)
	copy(ciphertext, plaintext)
	for i := len(plaintext); i < len(ciphertext); i++ {
		ciphertext[i] = byte(pad)
	}
	cipher.NewCBCEncrypter(block, nonce).CryptBlocks(ciphertext, ciphertext)
	return ciphertext, c.tag(macKey, nonce, ciphertext, aad), nil
}

func (c cbcHMACCipher) Open(key, nonce, ciphertext, tag, aad []byte) ([]byte, error) {
	macKey, block, err := c.split(key, nonce)
	if err != nil {
		return nil, err
	}
	if len(tag) != c.TagSize() || subtle.ConstantTimeCompare(tag, c.tag(macKey, nonce, ciphertext, aad)) != 1 {
		return nil, ErrAuthenticationFailed
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidCiphertext, len(ciphertext))
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, nonce).CryptBlocks(plaintext, ciphertext)

	pad := int(plaintext[len(plaintext)-1])
	if pad == 0 || pad > aes.BlockSize {
		return nil, fmt.Errorf("%w: bad padding", ErrInvalidCiphertext)
	}
	for _, b := range plaintext[len(plaintext)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("%w: bad padding", ErrInvalidCiphertext)
		}
	}
	return plaintext[:len(plaintext)-pad], nil
}
