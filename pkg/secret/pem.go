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

package secret

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/encoding"
)

// ParsePEM builds an owned asymmetric key from the first PEM block of data.
// Private keys, public keys and certificates are accepted; password
// decrypts an "ENCRYPTED PRIVATE KEY" block.
func ParsePEM(data, password []byte) (SecretKey, error) {
	v, err := encoding.DecodePEM(data, password)
	if err != nil {
		return nil, err
	}
	if cert, ok := v.(*x509.Certificate); ok {
		return NewCertificateKey(cert, nil, true)
	}
	return newAsymmetric(v, true)
}

// MarshalPEM encodes an asymmetric key as PEM: PKCS#8 for private keys,
// encrypted when password is set, and PKIX for public-only keys.
// Symmetric keys have no PEM form.
func MarshalPEM(key SecretKey, password []byte) ([]byte, error) {
	h, err := handleOf(key)
	if err != nil {
		return nil, err
	}
	if h.IsDisposed() {
		return nil, ErrKeyDisposed
	}
	if h.private == nil {
		return encoding.EncodePublicKeyPEM(h.public)
	}
	return encoding.EncodePrivateKeyPEM(h.private, password)
}

// Public returns a borrowed, public-only view of an asymmetric key.
// Disposing the view leaves key untouched.
func Public(key SecretKey) (SecretKey, error) {
	h, err := handleOf(key)
	if err != nil {
		return nil, err
	}
	return newAsymmetric(h.public, false)
}

func handleOf(key SecretKey) (*handle, error) {
	switch k := key.(type) {
	case *RSASecretKey:
		return &k.handle, nil
	case *ECCSecretKey:
		return &k.handle, nil
	case nil:
		return nil, ErrInvalidKey
	default:
		return nil, fmt.Errorf("%w: %s keys have no PEM form", ErrNotExportable, key.KeyType())
	}
}

func newAsymmetric(v any, owns bool) (SecretKey, error) {
	var pub crypto.PublicKey = v
	if s, ok := v.(crypto.Signer); ok {
		pub = s.Public()
	}
	switch pub.(type) {
	case *rsa.PublicKey:
		return NewRSAKey(v, owns)
	case *ecdsa.PublicKey:
		return NewECCKey(v, owns)
	default:
		return nil, fmt.Errorf("%w: unsupported key %T", ErrInvalidKeyType, pub)
	}
}
