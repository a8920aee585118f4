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
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jeremyhahn/go-josekit/pkg/jose"
	"github.com/jeremyhahn/go-josekit/pkg/jose/header"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// TypeJWT is the "typ" header value written by Issuer.
const TypeJWT = "JWT"

// Issuer produces JWTs with the engine's encoder.
type Issuer struct {
	enc *jose.Encoder
}

// NewIssuer creates an issuer around enc.
func NewIssuer(enc *jose.Encoder) *Issuer {
	return &Issuer{enc: enc}
}

// Sign marshals claims and returns them as a compact JWS with "typ": "JWT".
//
// Example:
//
//	token, err := issuer.Sign(ctx, jwt.RegisteredClaims{
//	    Subject:   "user123",
//	    ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
//	}, &jose.SigningCredentials{Key: key, Algorithm: jws.ES256, KeyID: "signing-key"})
func (i *Issuer) Sign(ctx context.Context, claims jwt.Claims, creds *jose.SigningCredentials) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("jwt: marshal claims: %w", err)
	}
	return i.enc.EncodeSigned(ctx, payload, creds, typed())
}

// Encrypt marshals claims and returns them as a compact JWE with
// "typ": "JWT".
func (i *Issuer) Encrypt(ctx context.Context, claims jwt.Claims, creds *jose.EncryptingCredentials) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("jwt: marshal claims: %w", err)
	}
	return i.enc.EncodeEncrypted(ctx, payload, creds, typed())
}

func typed() *header.Header {
	h := header.New()
	h.Set(header.Type, TypeJWT)
	return h
}

// Verifier authenticates JWTs with the engine's decoder and validates their
// claims with golang-jwt.
type Verifier struct {
	dec       *jose.Decoder
	validator *jwt.Validator
}

// NewVerifier creates a verifier. opts configure claims validation, for
// example jwt.WithIssuer, jwt.WithAudience, jwt.WithLeeway or
// jwt.WithExpirationRequired.
func NewVerifier(dec *jose.Decoder, opts ...jwt.ParserOption) *Verifier {
	return &Verifier{dec: dec, validator: jwt.NewValidator(opts...)}
}

// Verify authenticates token with key, decodes its payload into claims and
// validates them. claims must be a pointer or a non-nil jwt.MapClaims.
//
// Example:
//
//	var claims jwt.RegisteredClaims
//	h, err := verifier.Verify(ctx, token, key, &claims)
//	if err != nil {
//	    log.Fatal("invalid token")
//	}
func (v *Verifier) Verify(ctx context.Context, token string, key secret.SecretKey, claims jwt.Claims) (*header.Header, error) {
	return v.VerifyWithResolver(ctx, token, jose.StaticKey(key), claims)
}

// VerifyWithResolver is Verify with the key chosen from the token header.
func (v *Verifier) VerifyWithResolver(ctx context.Context, token string, resolve jose.KeyResolver, claims jwt.Claims) (*header.Header, error) {
	tok, err := v.dec.DecodeWithResolver(ctx, token, resolve)
	if err != nil {
		return nil, err
	}
	if typ, ok, _ := tok.Header.GetString(header.Type); ok && !isJWTType(typ) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}

	var target any = claims
	if m, ok := claims.(jwt.MapClaims); ok {
		target = &m
	}
	if err := json.Unmarshal(tok.Payload, target); err != nil {
		return nil, fmt.Errorf("%w: %w", jwt.ErrTokenMalformed, err)
	}
	if err := v.validator.Validate(claims); err != nil {
		return nil, err
	}
	return tok.Header, nil
}

func isJWTType(typ string) bool {
	typ = strings.TrimPrefix(strings.ToLower(typ), "application/")
	return typ == "jwt"
}

// ExtractKID returns the "kid" header of token without verifying it. An
// absent kid is the empty string.
//
// Example:
//
//	kid, err := jwt.ExtractKID(tokenString)
//	if err != nil {
//	    log.Fatal("invalid token format")
//	}
//	fmt.Printf("Token was signed with key: %s\n", kid)
func ExtractKID(token string) (string, error) {
	h, err := jose.ParseHeader(token)
	if err != nil {
		return "", err
	}
	return h.KeyID(), nil
}
