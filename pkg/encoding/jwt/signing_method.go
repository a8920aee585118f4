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

package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jeremyhahn/go-josekit/pkg/jose"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jws"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

var (
	ErrInvalidSignatureAlgorithm = errors.New("jwt: invalid signature algorithm")
	ErrInvalidKey                = errors.New("jwt: invalid key type")
	ErrInvalidType               = errors.New("jwt: invalid token type")
)

// SigningMethod implements jwt.SigningMethod over a registered signature
// algorithm. Sign and Verify take a secret.SecretKey.
type SigningMethod struct {
	alg jwa.SignatureAlgorithm
}

// NewSigningMethod looks code up in registry, or in the default registry
// when registry is nil. "none" is refused; golang-jwt has its own guarded
// implementation of unsecured tokens.
func NewSigningMethod(registry *jwa.Registry, code string) (*SigningMethod, error) {
	if code == jws.None {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSignatureAlgorithm, code)
	}
	if registry == nil {
		registry = jose.DefaultRegistry()
	}
	alg, err := registry.Signature(code)
	if err != nil {
		return nil, err
	}
	return &SigningMethod{alg: alg}, nil
}

// Alg returns the JWS algorithm code (HS256, RS256, ES256, etc.)
func (m *SigningMethod) Alg() string {
	return m.alg.Code()
}

// Sign signs signingString with a secret.SecretKey.
func (m *SigningMethod) Sign(signingString string, key any) ([]byte, error) {
	k, err := secretKey(key)
	if err != nil {
		return nil, err
	}
	return jws.Sign(m.alg, k, []byte(signingString))
}

// Verify checks signature over signingString with a secret.SecretKey.
func (m *SigningMethod) Verify(signingString string, signature []byte, key any) error {
	k, err := secretKey(key)
	if err != nil {
		return err
	}
	ok, err := m.alg.Verify(k, []byte(signingString), signature)
	if err != nil {
		return err
	}
	if !ok {
		return jwt.ErrSignatureInvalid
	}
	return nil
}

func secretKey(key any) (secret.SecretKey, error) {
	k, ok := key.(secret.SecretKey)
	if !ok || k == nil {
		return nil, fmt.Errorf("%w: %w: expected secret.SecretKey, got %T", ErrInvalidKey, jwt.ErrInvalidKeyType, key)
	}
	return k, nil
}
