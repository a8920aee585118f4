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

	"github.com/jeremyhahn/go-josekit/pkg/crypto/wrapping"
	"github.com/jeremyhahn/go-josekit/pkg/jose/header"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jws"
	"github.com/jeremyhahn/go-josekit/pkg/memory"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// RSAKeyTransport is RSA-OAEP (SHA-1) or RSA-OAEP-256.
type RSAKeyTransport struct {
	jwa.Descriptor
	alg  wrapping.WrappingAlgorithm
	pool *memory.Pool
}

// NewRSAOAEP returns an RSA-OAEP key transport algorithm.
func NewRSAOAEP(code string, alg wrapping.WrappingAlgorithm, opts *Options) *RSAKeyTransport {
	return &RSAKeyTransport{
		Descriptor: jwa.NewDescriptor(code, jwa.KindKeyManagement, secret.KeyTypeRSA,
			secret.KeySizes{MinSize: jws.MinRSAKeyBits, MaxSize: jws.MaxRSAKeyBits, SkipSize: 8}),
		alg:  alg,
		pool: opts.pool(),
	}
}

// RSAOAEPSource provides RSA-OAEP and RSA-OAEP-256.
func RSAOAEPSource(opts *Options) jwa.DataSource {
	return jwa.Algorithms(
		NewRSAOAEP(RSAOAEP, wrapping.WrappingAlgorithmRSAES_OAEP_SHA_1, opts),
		NewRSAOAEP(RSAOAEP256, wrapping.WrappingAlgorithmRSAES_OAEP_SHA_256, opts),
	)
}

// LegalCEKByteSizes returns every size OAEP can carry under the modulus.
func (a *RSAKeyTransport) LegalCEKByteSizes(kekSizeBits int) []secret.KeySizes {
	hash, _ := wrapping.GetHashForAlgorithm(a.alg)
	return []secret.KeySizes{{MinSize: 1, MaxSize: kekSizeBits/8 - 2*hash.Size() - 2, SkipSize: 1}}
}

// EncryptedCEKSizeBytes returns the modulus size.
func (a *RSAKeyTransport) EncryptedCEKSizeBytes(kekSizeBits, _ int) int {
	return kekSizeBits / 8
}

func (a *RSAKeyTransport) TryWrapKey(kek secret.SecretKey, _ *header.Header, cek, dst []byte) (int, bool, error) {
	k, err := secret.Validate[*secret.RSASecretKey](kek, a.KeyBitSizes())
	if err != nil {
		return 0, false, err
	}
	size := a.EncryptedCEKSizeBytes(k.KeySizeBits(), len(cek))
	if len(dst) < size {
		return 0, false, nil
	}
	wrapped, err := wrapping.WrapRSAOAEP(cek, k.PublicKey(), a.alg)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", secret.ErrInvalidKeySize, err)
	}
	return copy(dst, wrapped), true, nil
}

func (a *RSAKeyTransport) TryWrapNewKey(kek secret.SecretKey, h *header.Header, cek, dst []byte) (int, bool, error) {
	if err := randomKey(cek); err != nil {
		return 0, false, err
	}
	return a.TryWrapKey(kek, h, cek, dst)
}

func (a *RSAKeyTransport) TryUnwrapKey(kek secret.SecretKey, _ *header.Header, encryptedCEK, cek []byte) (int, bool, error) {
	k, err := secret.Validate[*secret.RSASecretKey](kek, a.KeyBitSizes())
	if err != nil {
		return 0, false, err
	}
	dec, ok := k.Decrypter()
	if !ok {
		return 0, false, fmt.Errorf("%w: %s requires a private key that can decrypt", secret.ErrInvalidKey, a.Code())
	}
	if len(encryptedCEK) != k.KeySizeBytes() {
		return 0, false, integrity(fmt.Errorf("encrypted key is %d bytes", len(encryptedCEK)))
	}

	// Decrypt into pooled scratch so a short cek can be retried.
	scratch, err := a.pool.Rent(k.KeySizeBytes())
	if err != nil {
		return 0, false, err
	}
	defer scratch.Dispose()

	n, err := wrapping.UnwrapRSAOAEPInto(scratch.Bytes(), encryptedCEK, dec, a.alg)
	if err != nil {
		if errors.Is(err, wrapping.ErrIntegrityCheckFailed) {
			return 0, false, integrity(err)
		}
		return 0, false, fmt.Errorf("jwe: unwrap key: %w", err)
	}
	if len(cek) < n {
		return 0, false, nil
	}
	return copy(cek, scratch.Bytes()[:n]), true, nil
}
