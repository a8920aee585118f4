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

package jwe

import (
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/crypto/aead"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// ContentEncryption adapts an aead.Cipher to a JWE "enc" algorithm.
type ContentEncryption struct {
	jwa.Descriptor
	cipher aead.Cipher
}

// NewContentEncryption returns the algorithm for an "enc" code.
func NewContentEncryption(code string) (*ContentEncryption, error) {
	c, ok := aead.ByCode(code)
	if !ok {
		return nil, fmt.Errorf("%w: enc %q", jwa.ErrUnsupportedAlgorithm, code)
	}
	return &ContentEncryption{
		Descriptor: jwa.NewDescriptor(code, jwa.KindContentEncryption, secret.KeyTypeSymmetric,
			secret.Fixed(c.KeySize()*8)),
		cipher: c,
	}, nil
}

// ContentEncryptionSource provides the GCM and CBC-HMAC content ciphers.
func ContentEncryptionSource() jwa.DataSource {
	return jwa.DataSourceFunc(func() []jwa.Algorithm {
		var algs []jwa.Algorithm
		for _, code := range aead.Codes() {
			enc, _ := NewContentEncryption(code)
			algs = append(algs, enc)
		}
		return algs
	})
}

func (c *ContentEncryption) CEKSizeBytes() int { return c.cipher.KeySize() }
func (c *ContentEncryption) IVSizeBytes() int  { return c.cipher.NonceSize() }

func (c *ContentEncryption) Encrypt(cek, iv, plaintext, aad []byte) ([]byte, []byte, error) {
	ciphertext, tag, err := c.cipher.Seal(cek, iv, plaintext, aad)
	if err != nil {
		return nil, nil, mapCipherError(err)
	}
	return ciphertext, tag, nil
}

func (c *ContentEncryption) Decrypt(cek, iv, ciphertext, tag, aad []byte) ([]byte, error) {
	plaintext, err := c.cipher.Open(cek, iv, ciphertext, tag, aad)
	if err != nil {
		return nil, mapCipherError(err)
	}
	return plaintext, nil
}

func mapCipherError(err error) error {
	switch {
	case errors.Is(err, aead.ErrInvalidKeySize):
		return fmt.Errorf("%w: %w", secret.ErrInvalidKeySize, err)
	case errors.Is(err, aead.ErrInvalidNonce):
		return fmt.Errorf("%w: %w", jwa.ErrMalformedToken, err)
	case errors.Is(err, aead.ErrAuthenticationFailed), errors.Is(err, aead.ErrInvalidCiphertext):
		return integrity(err)
	default:
		return err
	}
}
