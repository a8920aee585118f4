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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"

	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// ECDSA is ES256, ES384 or ES512. Signatures are R || S, each left padded
// to the curve's byte length (66 bytes for P-521).
type ECDSA struct {
	jwa.Descriptor
	hash  crypto.Hash
	curve elliptic.Curve
}

// NewECDSA returns an ECDSA signature algorithm bound to curve.
func NewECDSA(code string, hash crypto.Hash, curve elliptic.Curve) *ECDSA {
	return &ECDSA{
		Descriptor: jwa.NewDescriptor(code, jwa.KindSignature, secret.KeyTypeECC,
			secret.Fixed(curve.Params().BitSize)),
		hash:  hash,
		curve: curve,
	}
}

// ECDSASource provides ES256, ES384 and ES512.
func ECDSASource() jwa.DataSource {
	return jwa.Algorithms(
		NewECDSA(ES256, crypto.SHA256, elliptic.P256()),
		NewECDSA(ES384, crypto.SHA384, elliptic.P384()),
		NewECDSA(ES512, crypto.SHA512, elliptic.P521()),
	)
}

// SignatureSizeBytes returns twice the curve size rounded up to bytes.
func (a *ECDSA) SignatureSizeBytes(keySizeBits int) int {
	return 2 * ((keySizeBits + 7) / 8)
}

func (a *ECDSA) key(key secret.SecretKey) (*secret.ECCSecretKey, error) {
	k, err := secret.Validate[*secret.ECCSecretKey](key, a.KeyBitSizes())
	if err != nil {
		return nil, err
	}
	if k.Curve().Params().Name != a.curve.Params().Name {
		return nil, fmt.Errorf("%w: %s requires %s, got %s",
			secret.ErrInvalidKeyType, a.Code(), a.curve.Params().Name, k.Curve().Params().Name)
	}
	return k, nil
}

func (a *ECDSA) TrySign(key secret.SecretKey, data, dst []byte) (int, bool, error) {
	k, err := a.key(key)
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
	der, err := signer.Sign(rand.Reader, digest(a.hash, data), a.hash)
	if err != nil {
		return 0, false, fmt.Errorf("jws: %s sign: %w", a.Code(), err)
	}
	r, s, err := parseASN1(der)
	if err != nil {
		return 0, false, fmt.Errorf("jws: %s: %w", a.Code(), err)
	}
	half := size / 2
	if r.BitLen() > half*8 || s.BitLen() > half*8 {
		return 0, false, fmt.Errorf("jws: %s signer returned an oversized signature", a.Code())
	}
	r.FillBytes(dst[:half])
	s.FillBytes(dst[half:size])
	return size, true, nil
}

func (a *ECDSA) Verify(key secret.SecretKey, data, signature []byte) (bool, error) {
	k, err := a.key(key)
	if err != nil {
		return false, err
	}
	size := a.SignatureSizeBytes(k.KeySizeBits())
	if len(signature) != size {
		return false, nil
	}
	r := new(big.Int).SetBytes(signature[:size/2])
	s := new(big.Int).SetBytes(signature[size/2:])
	return ecdsa.Verify(k.PublicKey(), digest(a.hash, data), r, s), nil
}

// parseASN1 decodes the DER SEQUENCE { r INTEGER, s INTEGER } that
// crypto.Signer implementations return for ECDSA.
func parseASN1(der []byte) (*big.Int, *big.Int, error) {
	var (
		r, s  = new(big.Int), new(big.Int)
		inner cryptobyte.String
	)
	input := cryptobyte.String(der)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return nil, nil, fmt.Errorf("invalid ASN.1 ECDSA signature")
	}
	return r, s, nil
}
