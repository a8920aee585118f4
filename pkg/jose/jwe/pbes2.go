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
	"crypto"
	"crypto/rand"
	"fmt"

	"github.com/jeremyhahn/go-josekit/internal/password"
	"github.com/jeremyhahn/go-josekit/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-josekit/pkg/crypto/wrapping"
	"github.com/jeremyhahn/go-josekit/pkg/jose/header"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/memory"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// PBES2 is PBES2-HS256+A128KW, PBES2-HS384+A192KW or PBES2-HS512+A256KW.
// The KEK is PBKDF2(password, UTF8(alg) || 0x00 || p2s, p2c) and wraps the
// CEK with AES-KW.
type PBES2 struct {
	jwa.Descriptor
	hash          crypto.Hash
	kwBytes       int
	iterations    int
	maxIterations int
	pool          *memory.Pool
	kdf           kdf.KDFAdapter
}

// NewPBES2 returns a PBES2 algorithm.
func NewPBES2(code string, hash crypto.Hash, kwBits int, opts *Options) *PBES2 {
	return &PBES2{
		Descriptor: jwa.NewDescriptor(code, jwa.KindKeyManagement, secret.KeyTypeSymmetric,
			secret.KeySizes{MinSize: 8, MaxSize: secret.Unbounded, SkipSize: 8}),
		hash:          hash,
		kwBytes:       kwBits / 8,
		iterations:    opts.iterations(),
		maxIterations: opts.maxIterations(),
		pool:          opts.pool(),
		kdf:           kdf.NewPBKDF2Adapter(),
	}
}

// PBES2Source provides the three PBES2 variants.
func PBES2Source(opts *Options) jwa.DataSource {
	return jwa.Algorithms(
		NewPBES2(PBES2HS256A128KW, crypto.SHA256, 128, opts),
		NewPBES2(PBES2HS384A192KW, crypto.SHA384, 192, opts),
		NewPBES2(PBES2HS512A256KW, crypto.SHA512, 256, opts),
	)
}

// Iterations returns the default "p2c".
func (a *PBES2) Iterations() int { return a.iterations }

// LegalCEKByteSizes returns the sizes AES-KW can wrap.
func (a *PBES2) LegalCEKByteSizes(int) []secret.KeySizes {
	return []secret.KeySizes{wrappableSize}
}

// EncryptedCEKSizeBytes adds the 8 byte integrity block.
func (a *PBES2) EncryptedCEKSizeBytes(_ int, cekSizeBytes int) int {
	return cekSizeBytes + wrapping.KeyWrapOverhead
}

func (a *PBES2) TryWrapKey(kek secret.SecretKey, h *header.Header, cek, dst []byte) (int, bool, error) {
	return a.wrap(kek, h, cek, dst, false)
}

func (a *PBES2) TryWrapNewKey(kek secret.SecretKey, h *header.Header, cek, dst []byte) (int, bool, error) {
	return a.wrap(kek, h, cek, dst, true)
}

func (a *PBES2) wrap(kek secret.SecretKey, h *header.Header, cek, dst []byte, fresh bool) (int, bool, error) {
	pw, err := secret.Validate[*secret.SymmetricSecretKey](kek, a.KeyBitSizes())
	if err != nil {
		return 0, false, err
	}
	if len(dst) < len(cek)+wrapping.KeyWrapOverhead {
		return 0, false, nil
	}

	salt, ok, err := h.GetBytes(header.PBES2SaltInput)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		salt = make([]byte, PBES2SaltSize)
		if _, err := rand.Read(salt); err != nil {
			return 0, false, fmt.Errorf("jwe: generate p2s: %w", err)
		}
		h.SetBytes(header.PBES2SaltInput, salt)
	}
	count, ok, err := h.GetInt(header.PBES2Count)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		count = a.iterations
		h.Set(header.PBES2Count, count)
	}

	derived, err := a.derive(pw.Bytes(), salt, count)
	if err != nil {
		return 0, false, err
	}
	defer derived.Dispose()

	if fresh {
		if err := randomKey(cek); err != nil {
			return 0, false, err
		}
	}
	return wrapWith(derived.Bytes(), cek, dst)
}

func (a *PBES2) TryUnwrapKey(kek secret.SecretKey, h *header.Header, encryptedCEK, cek []byte) (int, bool, error) {
	pw, err := secret.Validate[*secret.SymmetricSecretKey](kek, a.KeyBitSizes())
	if err != nil {
		return 0, false, err
	}
	salt, err := requireBytes(h, header.PBES2SaltInput)
	if err != nil {
		return 0, false, err
	}
	count, ok, err := h.GetInt(header.PBES2Count)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", jwa.ErrMalformedToken, err)
	}
	if !ok {
		return 0, false, fmt.Errorf("%w: missing %q", jwa.ErrMalformedToken, header.PBES2Count)
	}
	if count > a.maxIterations {
		return 0, false, fmt.Errorf("%w: p2c %d exceeds %d", jwa.ErrMalformedToken, count, a.maxIterations)
	}

	derived, err := a.derive(pw.Bytes(), salt, count)
	if err != nil {
		return 0, false, err
	}
	defer derived.Dispose()
	return unwrapWith(derived.Bytes(), encryptedCEK, cek)
}

// derive runs PBKDF2 into a pooled KEK buffer. The caller disposes it.
func (a *PBES2) derive(pw, p2s []byte, count int) (*memory.SecureBuffer, error) {
	if len(p2s) < 8 {
		return nil, fmt.Errorf("%w: p2s must be at least 8 bytes", jwa.ErrMalformedToken)
	}
	salt := make([]byte, 0, len(a.Code())+1+len(p2s))
	salt = append(salt, a.Code()...)
	salt = append(salt, 0)
	salt = append(salt, p2s...)

	out, err := a.pool.Rent(a.kwBytes)
	if err != nil {
		return nil, err
	}
	err = a.kdf.DeriveKeyInto(out.Bytes(), pw, &kdf.KDFParams{
		Algorithm:  kdf.AlgorithmPBKDF2,
		Salt:       salt,
		Iterations: count,
		KeyLength:  a.kwBytes,
		Hash:       a.hash,
	})
	if err != nil {
		out.Dispose()
		return nil, fmt.Errorf("jwe: pbkdf2: %w", err)
	}
	return out, nil
}

func requireBytes(h *header.Header, name string) ([]byte, error) {
	b, ok, err := h.GetBytes(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", jwa.ErrMalformedToken, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", jwa.ErrMalformedToken, name)
	}
	return b, nil
}

// GeneratePasswordKey returns a PBES2 key holding a freshly generated
// password of length characters, UTF-8 encoded.
func GeneratePasswordKey(pool *memory.Pool, length int) (*secret.SymmetricSecretKey, error) {
	pw, err := password.Generate(pool, length)
	if err != nil {
		return nil, err
	}
	return secret.NewSymmetricKeyFromBuffer(pw.Release())
}
