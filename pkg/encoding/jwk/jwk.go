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

// Package jwk encodes public keys as JSON Web Keys (RFC 7517).
//
// Only the subset the JOSE engine exchanges on the wire is supported: EC
// public keys for the ECDH-ES "epk" header parameter, and RSA or EC public
// keys for thumbprint key IDs.
package jwk

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrUnsupportedKey is returned for key types or curves outside the
	// supported subset.
	ErrUnsupportedKey = errors.New("jwk: unsupported key")

	// ErrInvalidKey is returned for JWKs with missing or malformed members.
	ErrInvalidKey = errors.New("jwk: invalid key")
)

// JWK is a JSON Web Key.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid,omitempty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`

	// EC (RFC 7518 section 6.2.1)
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`

	// RSA (RFC 7518 section 6.3.1)
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`
}

// Key types.
const (
	KeyTypeEC  = "EC"
	KeyTypeRSA = "RSA"
)

// Curve names.
const (
	CurveP256 = "P-256"
	CurveP384 = "P-384"
	CurveP521 = "P-521"
)

var b64 = base64.RawURLEncoding

// FromPublicKey encodes an *ecdsa.PublicKey or *rsa.PublicKey.
func FromPublicKey(pub crypto.PublicKey) (*JWK, error) {
	switch key := pub.(type) {
	case *ecdsa.PublicKey:
		return FromECDSA(key)
	case *rsa.PublicKey:
		return &JWK{
			Kty: KeyTypeRSA,
			N:   b64.EncodeToString(key.N.Bytes()),
			E:   b64.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
	}
}

// FromECDSA encodes an EC public key. Coordinates are left padded to the
// curve's byte length as RFC 7518 section 6.2.1.2 requires.
func FromECDSA(key *ecdsa.PublicKey) (*JWK, error) {
	if key == nil || key.Curve == nil {
		return nil, ErrInvalidKey
	}
	crv, err := CurveName(key.Curve)
	if err != nil {
		return nil, err
	}
	size := (key.Curve.Params().BitSize + 7) / 8
	return &JWK{
		Kty: KeyTypeEC,
		Crv: crv,
		X:   b64.EncodeToString(key.X.FillBytes(make([]byte, size))),
		Y:   b64.EncodeToString(key.Y.FillBytes(make([]byte, size))),
	}, nil
}

// ToPublicKey decodes the JWK.
func (j *JWK) ToPublicKey() (crypto.PublicKey, error) {
	switch j.Kty {
	case KeyTypeEC:
		return j.ToECDSA()
	case KeyTypeRSA:
		return j.toRSA()
	default:
		return nil, fmt.Errorf("%w: kty %q", ErrUnsupportedKey, j.Kty)
	}
}

// ToECDSA decodes an EC JWK and checks that the point is on its curve.
func (j *JWK) ToECDSA() (*ecdsa.PublicKey, error) {
	if j.Kty != KeyTypeEC {
		return nil, fmt.Errorf("%w: kty %q is not EC", ErrInvalidKey, j.Kty)
	}
	curve, err := Curve(j.Crv)
	if err != nil {
		return nil, err
	}
	size := (curve.Params().BitSize + 7) / 8
	x, err := decodeCoordinate("x", j.X, size)
	if err != nil {
		return nil, err
	}
	y, err := decodeCoordinate("y", j.Y, size)
	if err != nil {
		return nil, err
	}

	pub := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	if _, err := pub.ECDH(); err != nil {
		return nil, fmt.Errorf("%w: point not on %s", ErrInvalidKey, j.Crv)
	}
	return pub, nil
}

func decodeCoordinate(name, value string, size int) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: missing %q", ErrInvalidKey, name)
	}
	b, err := b64.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidKey, name, err)
	}
	if len(b) != size {
		return nil, fmt.Errorf("%w: %q is %d bytes, want %d", ErrInvalidKey, name, len(b), size)
	}
	return new(big.Int).SetBytes(b), nil
}

func (j *JWK) toRSA() (*rsa.PublicKey, error) {
	if j.N == "" || j.E == "" {
		return nil, fmt.Errorf("%w: RSA JWK needs n and e", ErrInvalidKey)
	}
	n, err := b64.DecodeString(j.N)
	if err != nil {
		return nil, fmt.Errorf("%w: n: %v", ErrInvalidKey, err)
	}
	e, err := b64.DecodeString(j.E)
	if err != nil {
		return nil, fmt.Errorf("%w: e: %v", ErrInvalidKey, err)
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() < 3 || exp.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("%w: bad exponent", ErrInvalidKey)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}

// Marshal returns the JSON encoding of the JWK.
func (j *JWK) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

// Unmarshal parses a JSON encoded JWK.
func Unmarshal(data []byte) (*JWK, error) {
	var j JWK
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &j, nil
}

// CurveName returns the JWK "crv" value for curve.
func CurveName(curve elliptic.Curve) (string, error) {
	switch curve {
	case elliptic.P256():
		return CurveP256, nil
	case elliptic.P384():
		return CurveP384, nil
	case elliptic.P521():
		return CurveP521, nil
	default:
		return "", fmt.Errorf("%w: curve %s", ErrUnsupportedKey, curve.Params().Name)
	}
}

// Curve returns the curve named by a JWK "crv" value.
func Curve(name string) (elliptic.Curve, error) {
	switch name {
	case CurveP256:
		return elliptic.P256(), nil
	case CurveP384:
		return elliptic.P384(), nil
	case CurveP521:
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("%w: curve %q", ErrUnsupportedKey, name)
	}
}
