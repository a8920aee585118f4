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

// Package jws implements the JWS signature algorithms of RFC 7518
// section 3: HMAC, RSASSA-PKCS1-v1_5, RSASSA-PSS, ECDSA and "none".
package jws

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// Signature algorithm codes.
const (
	HS256 = "HS256"
	HS384 = "HS384"
	HS512 = "HS512"
	RS256 = "RS256"
	RS384 = "RS384"
	RS512 = "RS512"
	PS256 = "PS256"
	PS384 = "PS384"
	PS512 = "PS512"
	ES256 = "ES256"
	ES384 = "ES384"
	ES512 = "ES512"
	None  = "none"
)

// Sign signs data into a newly allocated buffer.
func Sign(alg jwa.SignatureAlgorithm, key secret.SecretKey, data []byte) ([]byte, error) {
	bits := 0
	if key != nil {
		bits = key.KeySizeBits()
	}
	dst := make([]byte, alg.SignatureSizeBytes(bits))
	n, ok, err := alg.TrySign(key, data, dst)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("jws: %s signature exceeds %d bytes", alg.Code(), len(dst))
	}
	return dst[:n], nil
}

// Sources returns the data sources of every signature family. "none" is
// included; the decoder refuses it unless explicitly allowed.
func Sources() []jwa.DataSource {
	return []jwa.DataSource{HMACSource(), RSASource(), ECDSASource(), NoneSource()}
}

func digest(h crypto.Hash, data []byte) []byte {
	d := h.New()
	d.Write(data)
	return d.Sum(nil)
}
