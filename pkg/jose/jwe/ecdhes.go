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
	"crypto/ecdsa"
	"fmt"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-josekit/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-josekit/pkg/crypto/ecdh"
	"github.com/jeremyhahn/go-josekit/pkg/crypto/wrapping"
	"github.com/jeremyhahn/go-josekit/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-josekit/pkg/jose/header"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/memory"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// ECDHKeyAgreement is ECDH-ES, alone (direct key agreement) or chained with
// AES-KW. Each encode generates an ephemeral key pair whose public half is
// written to "epk". The agreed secret is expanded with the Concat KDF of
// RFC 7518 section 4.6.2 using SHA-256.
type ECDHKeyAgreement struct {
	jwa.Descriptor
	kwBytes int
	pool    *memory.Pool
	kdf     kdf.KDFAdapter
}

// NewECDH returns an ECDH-ES algorithm. kwBits is zero for direct key
// agreement or the AES-KW KEK size.
func NewECDH(code string, kwBits int, opts *Options) *ECDHKeyAgreement {
	return &ECDHKeyAgreement{
		Descriptor: jwa.NewDescriptor(code, jwa.KindKeyManagement, secret.KeyTypeECC,
			secret.Fixed(256), secret.Fixed(384), secret.Fixed(521)),
		kwBytes: kwBits / 8,
		pool:    opts.pool(),
		kdf:     kdf.NewConcatKDFAdapter(),
	}
}

// ECDHSource provides ECDH-ES and its AES-KW variants.
func ECDHSource(opts *Options) jwa.DataSource {
	return jwa.Algorithms(
		NewECDH(ECDHES, 0, opts),
		NewECDH(ECDHESA128KW, 128, opts),
		NewECDH(ECDHESA192KW, 192, opts),
		NewECDH(ECDHESA256KW, 256, opts),
	)
}

func (a *ECDHKeyAgreement) direct() bool { return a.kwBytes == 0 }

// LegalCEKByteSizes returns any size for direct agreement, otherwise the
// sizes AES-KW can wrap.
func (a *ECDHKeyAgreement) LegalCEKByteSizes(int) []secret.KeySizes {
	if a.direct() {
		return []secret.KeySizes{anySize}
	}
	return []secret.KeySizes{wrappableSize}
}

// EncryptedCEKSizeBytes is zero for direct agreement.
func (a *ECDHKeyAgreement) EncryptedCEKSizeBytes(_ int, cekSizeBytes int) int {
	if a.direct() {
		return 0
	}
	return cekSizeBytes + wrapping.KeyWrapOverhead
}

func (a *ECDHKeyAgreement) TryWrapKey(kek secret.SecretKey, h *header.Header, cek, dst []byte) (int, bool, error) {
	if a.direct() {
		return 0, false, fmt.Errorf("%w: %s cannot wrap an existing key", jwa.ErrUnsupportedOperation, a.Code())
	}
	if len(dst) < len(cek)+wrapping.KeyWrapOverhead {
		return 0, false, nil
	}
	return a.wrap(kek, h, cek, dst, false)
}

func (a *ECDHKeyAgreement) TryWrapNewKey(kek secret.SecretKey, h *header.Header, cek, dst []byte) (int, bool, error) {
	if !a.direct() && len(dst) < len(cek)+wrapping.KeyWrapOverhead {
		return 0, false, nil
	}
	return a.wrap(kek, h, cek, dst, true)
}

func (a *ECDHKeyAgreement) wrap(kek secret.SecretKey, h *header.Header, cek, dst []byte, fresh bool) (int, bool, error) {
	recipient, err := secret.Validate[*secret.ECCSecretKey](kek, a.KeyBitSizes())
	if err != nil {
		return 0, false, err
	}
	algID, keyLen, err := a.derivation(h, len(cek))
	if err != nil {
		return 0, false, err
	}

	eph, err := ecdh.GenerateEphemeralKey(recipient.Curve())
	if err != nil {
		return 0, false, err
	}
	ephKey, err := secret.NewECCKey(eph, true)
	if err != nil {
		return 0, false, err
	}
	defer ephKey.Dispose()

	epk, err := jwk.FromECDSA(&eph.PublicKey)
	if err != nil {
		return 0, false, err
	}
	epk.Kid = uuid.NewString()
	h.Set(header.EphemeralPublicKey, epk)

	derived, err := a.agree(h, eph, recipient.PublicKey(), algID, keyLen)
	if err != nil {
		return 0, false, err
	}
	defer derived.Dispose()

	if a.direct() {
		copy(cek, derived.Bytes())
		return 0, true, nil
	}
	if fresh {
		if err := randomKey(cek); err != nil {
			return 0, false, err
		}
	}
	return wrapWith(derived.Bytes(), cek, dst)
}

func (a *ECDHKeyAgreement) TryUnwrapKey(kek secret.SecretKey, h *header.Header, encryptedCEK, cek []byte) (int, bool, error) {
	recipient, err := secret.Validate[*secret.ECCSecretKey](kek, a.KeyBitSizes())
	if err != nil {
		return 0, false, err
	}
	priv, ok := recipient.PrivateKey()
	if !ok {
		return 0, false, fmt.Errorf("%w: %s requires an in-memory EC private key", secret.ErrInvalidKey, a.Code())
	}
	if a.direct() && len(encryptedCEK) != 0 {
		return 0, false, fmt.Errorf("%w: %s requires an empty encrypted key", jwa.ErrMalformedToken, a.Code())
	}

	var epk jwk.JWK
	if err := h.Decode(header.EphemeralPublicKey, &epk); err != nil {
		return 0, false, fmt.Errorf("%w: %w", jwa.ErrMalformedToken, err)
	}
	pub, err := epk.ToECDSA()
	if err != nil {
		return 0, false, fmt.Errorf("%w: epk: %w", jwa.ErrMalformedToken, err)
	}
	if pub.Curve.Params().Name != priv.Curve.Params().Name {
		return 0, false, fmt.Errorf("%w: epk curve %s does not match key curve %s",
			jwa.ErrMalformedToken, pub.Curve.Params().Name, priv.Curve.Params().Name)
	}

	algID, keyLen, err := a.derivation(h, len(cek))
	if err != nil {
		return 0, false, err
	}
	derived, err := a.agree(h, priv, pub, algID, keyLen)
	if err != nil {
		return 0, false, err
	}
	defer derived.Dispose()

	if a.direct() {
		return copy(cek, derived.Bytes()), true, nil
	}
	return unwrapWith(derived.Bytes(), encryptedCEK, cek)
}

// derivation returns the Concat KDF AlgorithmID and output length. Direct
// agreement derives the CEK itself under the "enc" value; the KW variants
// derive a KEK under the "alg" value.
func (a *ECDHKeyAgreement) derivation(h *header.Header, cekLen int) (string, int, error) {
	if !a.direct() {
		return a.Code(), a.kwBytes, nil
	}
	enc, err := h.RequireString(header.Encryption)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", jwa.ErrMalformedToken, err)
	}
	if cekLen <= 0 {
		return "", 0, fmt.Errorf("%w: %s needs a content key length", secret.ErrInvalidKeySize, a.Code())
	}
	return enc, cekLen, nil
}

// agree runs ECDH and the Concat KDF. The caller disposes the result.
func (a *ECDHKeyAgreement) agree(h *header.Header, priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey, algID string, keyLen int) (*memory.SecureBuffer, error) {
	apu, _, err := h.GetBytes(header.AgreementPartyUInfo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", jwa.ErrMalformedToken, err)
	}
	apv, _, err := h.GetBytes(header.AgreementPartyVInfo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", jwa.ErrMalformedToken, err)
	}

	z, err := a.pool.Rent(ecdh.SharedSecretSize(priv.Curve))
	if err != nil {
		return nil, err
	}
	defer z.Dispose()
	if _, err := ecdh.DeriveSharedSecretInto(z.Bytes(), priv, pub); err != nil {
		return nil, fmt.Errorf("%w: %w", jwa.ErrIntegrityCheckFailed, err)
	}

	out, err := a.pool.Rent(keyLen)
	if err != nil {
		return nil, err
	}
	err = a.kdf.DeriveKeyInto(out.Bytes(), z.Bytes(), &kdf.KDFParams{
		Algorithm:   kdf.AlgorithmConcat,
		AlgorithmID: []byte(algID),
		PartyUInfo:  apu,
		PartyVInfo:  apv,
		KeyLength:   keyLen,
		Hash:        crypto.SHA256,
	})
	if err != nil {
		out.Dispose()
		return nil, fmt.Errorf("jwe: concat kdf: %w", err)
	}
	return out, nil
}
