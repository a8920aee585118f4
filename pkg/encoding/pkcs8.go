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

package encoding

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/youmark/pkcs8"
)

// EncodePKCS8 encodes a private key to ASN.1 DER PKCS#8 format.
// If a password is provided, the key is encrypted with PBES2
// (PBKDF2-HMAC-SHA256 and AES-256-CBC).
//
// Example:
//
//	der, err := encoding.EncodePKCS8(privateKey, []byte("mypassword"))
func EncodePKCS8(privateKey crypto.PrivateKey, password []byte) ([]byte, error) {
	if privateKey == nil {
		return nil, ErrInvalidPrivateKey
	}
	der, err := pkcs8.MarshalPrivateKey(privateKey, password, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal PKCS#8: %w", ErrInvalidPrivateKey, err)
	}
	return der, nil
}

// DecodePKCS8 decodes ASN.1 DER PKCS#8 data, decrypting it with password
// when it is an EncryptedPrivateKeyInfo.
//
// Example:
//
//	key, err := encoding.DecodePKCS8(derData, []byte("mypassword"))
//	rsaKey := key.(*rsa.PrivateKey)
func DecodePKCS8(data []byte, password []byte) (crypto.PrivateKey, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}
	key, err := pkcs8.ParsePKCS8PrivateKey(data, password)
	if err != nil {
		if isPasswordError(err) {
			return nil, ErrInvalidPassword
		}
		return nil, fmt.Errorf("%w: parse PKCS#8: %w", ErrInvalidData, err)
	}
	return key, nil
}

// EncodePublicKeyPKIX encodes a public key to ASN.1 DER SubjectPublicKeyInfo.
func EncodePublicKeyPKIX(publicKey crypto.PublicKey) ([]byte, error) {
	if publicKey == nil {
		return nil, ErrInvalidPublicKey
	}
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal PKIX: %w", ErrInvalidPublicKey, err)
	}
	return der, nil
}

// DecodePublicKeyPKIX decodes ASN.1 DER SubjectPublicKeyInfo.
func DecodePublicKeyPKIX(data []byte) (crypto.PublicKey, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}
	pub, err := x509.ParsePKIXPublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse PKIX: %w", ErrInvalidData, err)
	}
	return pub, nil
}

// isPasswordError reports whether err came from decrypting with the wrong
// password. youmark/pkcs8 only exposes this as a message.
func isPasswordError(err error) bool {
	return strings.Contains(err.Error(), "incorrect password")
}
