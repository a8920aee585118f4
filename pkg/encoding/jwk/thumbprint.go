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

package jwk

import (
	"crypto"
	_ "crypto/sha256"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Thumbprint computes the RFC 7638 thumbprint of pub with hash.
func Thumbprint(pub crypto.PublicKey, hash crypto.Hash) (string, error) {
	j, err := FromPublicKey(pub)
	if err != nil {
		return "", err
	}
	return j.Thumbprint(hash)
}

// ThumbprintSHA256 computes the SHA-256 thumbprint of pub.
func ThumbprintSHA256(pub crypto.PublicKey) (string, error) {
	return Thumbprint(pub, crypto.SHA256)
}

// Thumbprint hashes the required members of the JWK, serialized with
// lexicographically sorted names and no whitespace.
func (j *JWK) Thumbprint(hash crypto.Hash) (string, error) {
	if !hash.Available() {
		return "", fmt.Errorf("jwk: hash %v not available", hash)
	}
	var members map[string]string
	switch j.Kty {
	case KeyTypeEC:
		if j.Crv == "" || j.X == "" || j.Y == "" {
			return "", fmt.Errorf("%w: EC thumbprint needs crv, x and y", ErrInvalidKey)
		}
		members = map[string]string{"crv": j.Crv, "kty": j.Kty, "x": j.X, "y": j.Y}
	case KeyTypeRSA:
		if j.N == "" || j.E == "" {
			return "", fmt.Errorf("%w: RSA thumbprint needs n and e", ErrInvalidKey)
		}
		members = map[string]string{"e": j.E, "kty": j.Kty, "n": j.N}
	default:
		return "", fmt.Errorf("%w: kty %q", ErrUnsupportedKey, j.Kty)
	}

	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	slices.Sort(names)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		k, _ := json.Marshal(name)
		v, _ := json.Marshal(members[name])
		sb.Write(k)
		sb.WriteByte(':')
		sb.Write(v)
	}
	sb.WriteByte('}')

	h := hash.New()
	h.Write([]byte(sb.String()))
	return b64.EncodeToString(h.Sum(nil)), nil
}
