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

// Package jwt bridges github.com/golang-jwt/jwt/v5 and the JOSE engine.
//
// SigningMethod exposes any registered signature algorithm as a
// jwt.SigningMethod that takes a secret.SecretKey, so golang-jwt tokens can
// be signed with engine keys:
//
//	method, err := jwt.NewSigningMethod(nil, jws.ES256)
//	token := gojwt.NewWithClaims(method, gojwt.RegisteredClaims{Subject: "alice"})
//	signed, err := token.SignedString(eccKey)
//
// Issuer and Verifier go the other way: claims are carried as the payload of
// an engine-produced JWS or JWE, and golang-jwt's Validator checks them
// after the signature or tag has been verified:
//
//	issuer := jwt.NewIssuer(encoder)
//	token, err := issuer.Sign(ctx, claims, &jose.SigningCredentials{Key: key, Algorithm: jws.HS256})
//
//	verifier := jwt.NewVerifier(decoder, gojwt.WithIssuer("https://issuer.example"))
//	var out gojwt.RegisteredClaims
//	h, err := verifier.Verify(ctx, token, key, &out)
//
// Claims validation never runs before the token is authenticated, and a
// failed validation returns no claims the caller should trust.
package jwt
