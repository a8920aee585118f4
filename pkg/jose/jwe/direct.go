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
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/jose/header"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// DirectKeyAgreement is "dir": the shared symmetric key is the CEK and the
// JWE Encrypted Key is empty.
type DirectKeyAgreement struct {
	jwa.Descriptor
}

// NewDirect returns the "dir" algorithm.
func NewDirect() *DirectKeyAgreement {
	return &DirectKeyAgreement{jwa.NewDescriptor(Direct, jwa.KindKeyManagement, secret.KeyTypeSymmetric,
		secret.Fixed(128), secret.Fixed(192), secret.Fixed(256), secret.Fixed(384), secret.Fixed(512))}
}

// DirectSource provides "dir".
func DirectSource() jwa.DataSource {
	return jwa.Algorithms(NewDirect())
}

// LegalCEKByteSizes returns the KEK size: the CEK is the KEK.
func (a *DirectKeyAgreement) LegalCEKByteSizes(kekSizeBits int) []secret.KeySizes {
	return []secret.KeySizes{secret.Fixed(kekSizeBits / 8)}
}

// EncryptedCEKSizeBytes is always zero.
func (a *DirectKeyAgreement) EncryptedCEKSizeBytes(int, int) int { return 0 }

// TryWrapKey is unsupported: direct agreement cannot carry an existing key.
func (a *DirectKeyAgreement) TryWrapKey(secret.SecretKey, *header.Header, []byte, []byte) (int, bool, error) {
	return 0, false, fmt.Errorf("%w: %s cannot wrap an existing key", jwa.ErrUnsupportedOperation, a.Code())
}

// TryWrapNewKey copies the KEK into cek. Nothing is written to dst.
func (a *DirectKeyAgreement) TryWrapNewKey(kek secret.SecretKey, _ *header.Header, cek, _ []byte) (int, bool, error) {
	k, err := secret.Validate[*secret.SymmetricSecretKey](kek, a.KeyBitSizes())
	if err != nil {
		return 0, false, err
	}
	if k.KeySizeBytes() != len(cek) {
		return 0, false, fmt.Errorf("%w: %s key is %d bytes, content cipher needs %d",
			secret.ErrInvalidKeySize, a.Code(), k.KeySizeBytes(), len(cek))
	}
	copy(cek, k.Bytes())
	return 0, true, nil
}

// TryUnwrapKey copies the KEK into cek. The encrypted key must be empty.
func (a *DirectKeyAgreement) TryUnwrapKey(kek secret.SecretKey, _ *header.Header, encryptedCEK, cek []byte) (int, bool, error) {
	if len(encryptedCEK) != 0 {
		return 0, false, fmt.Errorf("%w: %s requires an empty encrypted key", jwa.ErrMalformedToken, a.Code())
	}
	k, err := secret.Validate[*secret.SymmetricSecretKey](kek, a.KeyBitSizes())
	if err != nil {
		return 0, false, err
	}
	if len(cek) < k.KeySizeBytes() {
		return 0, false, nil
	}
	return copy(cek, k.Bytes()), true, nil
}
