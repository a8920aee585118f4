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
	"crypto/hmac"

	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// HMAC is HS256, HS384 or HS512. The key must be at least as long as the
// hash output; there is no upper bound.
type HMAC struct {
	jwa.Descriptor
	hash crypto.Hash
}

// NewHMAC returns the HMAC algorithm for code using hash.
func NewHMAC(code string, hash crypto.Hash) *HMAC {
	return &HMAC{
		Descriptor: jwa.NewDescriptor(code, jwa.KindSignature, secret.KeyTypeSymmetric,
			secret.KeySizes{MinSize: hash.Size() * 8, MaxSize: secret.Unbounded, SkipSize: 8}),
		hash: hash,
	}
}

// HMACSource provides HS256, HS384 and HS512.
func HMACSource() jwa.DataSource {
	return jwa.Algorithms(
		NewHMAC(HS256, crypto.SHA256),
		NewHMAC(HS384, crypto.SHA384),
		NewHMAC(HS512, crypto.SHA512),
	)
}

// SignatureSizeBytes returns the hash size whatever the key size.
func (a *HMAC) SignatureSizeBytes(int) int {
	return a.hash.Size()
}

func (a *HMAC) TrySign(key secret.SecretKey, data, dst []byte) (int, bool, error) {
	k, err := secret.Validate[*secret.SymmetricSecretKey](key, a.KeyBitSizes())
	if err != nil {
		return 0, false, err
	}
	size := a.hash.Size()
	if len(dst) < size {
		return 0, false, nil
	}
	mac := hmac.New(a.hash.New, k.Bytes())
	mac.Write(data)
	mac.Sum(dst[:0])
	return size, true, nil
}

func (a *HMAC) Verify(key secret.SecretKey, data, signature []byte) (bool, error) {
	k, err := secret.Validate[*secret.SymmetricSecretKey](key, a.KeyBitSizes())
	if err != nil {
		return false, err
	}
	var sum [64]byte
	mac := hmac.New(a.hash.New, k.Bytes())
	mac.Write(data)
	return hmac.Equal(mac.Sum(sum[:0]), signature), nil
}
