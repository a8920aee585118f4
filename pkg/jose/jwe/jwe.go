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

// Package jwe implements the JWE key management algorithms of RFC 7518
// section 4 and adapts the content ciphers of pkg/crypto/aead to the jwa
// contracts.
//
// Raw symmetric scratch (shared secrets, derived and unwrapped keys) is
// rented from a memory.Pool and disposed before each call returns.
package jwe

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-josekit/pkg/crypto/aead"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/memory"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// Key management algorithm codes.
const (
	Direct           = "dir"
	A128KW           = "A128KW"
	A192KW           = "A192KW"
	A256KW           = "A256KW"
	ECDHES           = "ECDH-ES"
	ECDHESA128KW     = "ECDH-ES+A128KW"
	ECDHESA192KW     = "ECDH-ES+A192KW"
	ECDHESA256KW     = "ECDH-ES+A256KW"
	PBES2HS256A128KW = "PBES2-HS256+A128KW"
	PBES2HS384A192KW = "PBES2-HS384+A192KW"
	PBES2HS512A256KW = "PBES2-HS512+A256KW"
	RSAOAEP          = "RSA-OAEP"
	RSAOAEP256       = "RSA-OAEP-256"
)

// Content encryption codes.
const (
	A128GCM      = aead.A128GCM
	A192GCM      = aead.A192GCM
	A256GCM      = aead.A256GCM
	A128CBCHS256 = aead.A128CBCHS256
	A192CBCHS384 = aead.A192CBCHS384
	A256CBCHS512 = aead.A256CBCHS512
)

const (
	// DefaultPBES2Iterations is the "p2c" written when the header has none.
	DefaultPBES2Iterations = kdf.DefaultPBKDF2Iterations

	// DefaultMaxPBES2Iterations bounds the "p2c" accepted on decode.
	DefaultMaxPBES2Iterations = 10 * DefaultPBES2Iterations

	// PBES2SaltSize is the length of generated "p2s" values.
	PBES2SaltSize = 16
)

// Options configures the key management algorithms.
type Options struct {
	// Pool supplies scratch buffers. Nil uses memory.Shared.
	Pool *memory.Pool

	// PBES2Iterations is the default "p2c". Zero uses
	// DefaultPBES2Iterations.
	PBES2Iterations int

	// MaxPBES2Iterations rejects tokens with a larger "p2c". Zero uses
	// DefaultMaxPBES2Iterations.
	MaxPBES2Iterations int
}

func (o *Options) pool() *memory.Pool {
	if o == nil || o.Pool == nil {
		return memory.Shared()
	}
	return o.Pool
}

func (o *Options) iterations() int {
	if o == nil || o.PBES2Iterations <= 0 {
		return DefaultPBES2Iterations
	}
	return o.PBES2Iterations
}

func (o *Options) maxIterations() int {
	if o == nil || o.MaxPBES2Iterations <= 0 {
		return DefaultMaxPBES2Iterations
	}
	return o.MaxPBES2Iterations
}

// KeyManagementSources returns the data sources of every key management
// family.
func KeyManagementSources(opts *Options) []jwa.DataSource {
	return []jwa.DataSource{
		DirectSource(),
		AESKWSource(opts),
		ECDHSource(opts),
		PBES2Source(opts),
		RSAOAEPSource(opts),
	}
}

// Sources returns the key management and content encryption sources.
func Sources(opts *Options) []jwa.DataSource {
	return append(KeyManagementSources(opts), ContentEncryptionSource())
}

// anySize accepts any positive byte length.
var anySize = secret.KeySizes{MinSize: 1, MaxSize: secret.Unbounded, SkipSize: 1}

// wrappableSize is every CEK length AES-KW can wrap.
var wrappableSize = secret.KeySizes{MinSize: 16, MaxSize: secret.Unbounded, SkipSize: 8}

func randomKey(cek []byte) error {
	if _, err := rand.Read(cek); err != nil {
		return fmt.Errorf("jwe: generate content key: %w", err)
	}
	return nil
}

// integrity wraps err so that it matches jwa.ErrIntegrityCheckFailed.
func integrity(err error) error {
	if errors.Is(err, jwa.ErrIntegrityCheckFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", jwa.ErrIntegrityCheckFailed, err)
}
