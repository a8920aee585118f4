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

package jws

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// RSA key size limits in bits.
const (
	MinRSAKeyBits = 2048
	MaxRSAKeyBits = 16384
)

// RSA is RS256..RS512 (PKCS #1 v1.5) or PS256..PS512 (PSS with a salt as
// long as the hash).
type RSA struct {
	jwa.Descriptor
	hash crypto.Hash
	pss  bool
}

// NewRSA returns an RSA signature algorithm.
func NewRSA(code string, hash crypto.Hash, pss bool) *RSA {
	return &RSA{
		Descriptor: jwa.NewDescriptor(code, jwa.KindSignature, secret.KeyTypeRSA,
			secret.KeySizes{MinSize: MinRSAKeyBits, MaxSize: MaxRSAKeyBits, SkipSize: 8}),
		hash: hash,
		pss:  pss,
	}
}

// RSASource provides the PKCS #1 v1.5 and PSS variants.
func RSASource() jwa.DataSource {
	return jwa.Algorithms(
		NewRSA(RS256, crypto.SHA256, false),
		NewRSA(RS384, crypto.SHA384, false),
		NewRSA(RS512, crypto.SHA512, false),
		NewRSA(PS256, crypto.SHA256, true),
		NewRSA(PS384, crypto.SHA384, true),
		NewRSA(PS512, crypto.SHA512, true),
	)
}

// SignatureSizeBytes returns the modulus size in bytes.
func (a *RSA) SignatureSizeBytes(keySizeBits int) int {
	return (keySizeBits + 7) / 8
}

func (a *RSA) opts() crypto.SignerOpts {
	if a.pss {
		return &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: a.hash}
	}
	return a.hash
}

func (a *RSA) TrySign(key secret.SecretKey, data, dst []byte) (int, bool, error) {
	k, err := secret.Validate[*secret.RSASecretKey](key, a.KeyBitSizes())
	if err != nil {
		return 0, false, err
	}
	signer := k.Signer()
	if signer == nil {
		return 0, false, fmt.Errorf("%w: %s requires a private key", secret.ErrInvalidKey, a.Code())
	}
	size := a.SignatureSizeBytes(k.KeySizeBits())
	if len(dst) < size {
		return 0, false, nil
	}
	sig, err := signer.Sign(rand.Reader, digest(a.hash, data), a.opts())
	if err != nil {
		return 0, false, fmt.Errorf("jws: %s sign: %w", a.Code(), err)
	}
	if len(sig) != size {
		return 0, false, fmt.Errorf("jws: %s signer returned %d bytes, want %d", a.Code(), len(sig), size)
	}
	return copy(dst, sig), true, nil
}

// Verify rejects signatures that are not exactly the modulus size before
// any cryptographic check.
func (a *RSA) Verify(key secret.SecretKey, data, signature []byte) (bool, error) {
	k, err := secret.Validate[*secret.RSASecretKey](key, a.KeyBitSizes())
	if err != nil {
		return false, err
	}
	if len(signature) != a.SignatureSizeBytes(k.KeySizeBits()) {
		return false, nil
	}
	pub := k.PublicKey()
	d := digest(a.hash, data)
	if a.pss {
		return rsa.VerifyPSS(pub, a.hash, d, signature, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}) == nil, nil
	}
	return rsa.VerifyPKCS1v15(pub, a.hash, d, signature) == nil, nil
}
