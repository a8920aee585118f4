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
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// AESKeyWrap is A128KW, A192KW or A256KW (RFC 3394).
type AESKeyWrap struct {
	jwa.Descriptor
}

// NewAESKeyWrap returns the AES-KW algorithm for a KEK of kekBits.
func NewAESKeyWrap(code string, kekBits int) *AESKeyWrap {
	return &AESKeyWrap{jwa.NewDescriptor(code, jwa.KindKeyManagement, secret.KeyTypeSymmetric, secret.Fixed(kekBits))}
}

// AESKWSource provides A128KW, A192KW and A256KW.
func AESKWSource(*Options) jwa.DataSource {
	return jwa.Algorithms(
		NewAESKeyWrap(A128KW, 128),
		NewAESKeyWrap(A192KW, 192),
		NewAESKeyWrap(A256KW, 256),
	)
}

// LegalCEKByteSizes returns every multiple of 8 from 16 bytes up.
func (a *AESKeyWrap) LegalCEKByteSizes(int) []secret.KeySizes {
	return []secret.KeySizes{wrappableSize}
}

// EncryptedCEKSizeBytes adds the 8 byte integrity block.
func (a *AESKeyWrap) EncryptedCEKSizeBytes(_ int, cekSizeBytes int) int {
	return cekSizeBytes + wrapping.KeyWrapOverhead
}

func (a *AESKeyWrap) kek(key secret.SecretKey) ([]byte, error) {
	k, err := secret.Validate[*secret.SymmetricSecretKey](key, a.KeyBitSizes())
	if err != nil {
		return nil, err
	}
	return k.Bytes(), nil
}

func (a *AESKeyWrap) TryWrapKey(kek secret.SecretKey, _ *header.Header, cek, dst []byte) (int, bool, error) {
	raw, err := a.kek(kek)
	if err != nil {
		return 0, false, err
	}
	return wrapWith(raw, cek, dst)
}

func (a *AESKeyWrap) TryWrapNewKey(kek secret.SecretKey, _ *header.Header, cek, dst []byte) (int, bool, error) {
	raw, err := a.kek(kek)
	if err != nil {
		return 0, false, err
	}
	if len(dst) < len(cek)+wrapping.KeyWrapOverhead {
		return 0, false, nil
	}
	if err := randomKey(cek); err != nil {
		return 0, false, err
	}
	return wrapWith(raw, cek, dst)
}

func (a *AESKeyWrap) TryUnwrapKey(kek secret.SecretKey, _ *header.Header, encryptedCEK, cek []byte) (int, bool, error) {
	raw, err := a.kek(kek)
	if err != nil {
		return 0, false, err
	}
	return unwrapWith(raw, encryptedCEK, cek)
}

// wrapWith wraps cek under raw KEK bytes into dst.
func wrapWith(kek, cek, dst []byte) (int, bool, error) {
	if !wrappableSize.Contains(len(cek)) {
		return 0, false, fmt.Errorf("%w: cannot wrap a %d byte key", secret.ErrInvalidKeySize, len(cek))
	}
	if len(dst) < len(cek)+wrapping.KeyWrapOverhead {
		return 0, false, nil
	}
	n, err := wrapping.WrapAESKW(dst, kek, cek)
	if err != nil {
		return 0, false, fmt.Errorf("jwe: wrap key: %w", err)
	}
	return n, true, nil
}

// unwrapWith unwraps encryptedCEK under raw KEK bytes into cek.
func unwrapWith(kek, encryptedCEK, cek []byte) (int, bool, error) {
	if len(encryptedCEK) < 24 || len(encryptedCEK)%8 != 0 {
		return 0, false, integrity(fmt.Errorf("encrypted key is %d bytes", len(encryptedCEK)))
	}
	if len(cek) < len(encryptedCEK)-wrapping.KeyWrapOverhead {
		return 0, false, nil
	}
	n, err := wrapping.UnwrapAESKW(cek, kek, encryptedCEK)
	switch {
	case errors.Is(err, wrapping.ErrIntegrityCheckFailed):
		return 0, false, integrity(err)
	case err != nil:
		return 0, false, fmt.Errorf("jwe: unwrap key: %w", err)
	}
	return n, true, nil
}
