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

// Package ecdh provides the Elliptic Curve Diffie-Hellman primitives behind
// the JOSE ECDH-ES key agreement algorithms.
//
// This package supports the NIST P-256, P-384, and P-521 curves. The raw
// shared secret Z is written into a caller-supplied buffer so it can live in
// pinned memory; key derivation from Z is done with the Concat KDF in
// pkg/adapters/kdf.
//
// Example usage:
//
//	// The sender generates an ephemeral key on the recipient's curve
//	eph, _ := ecdh.GenerateEphemeralKey(recipient.Curve)
//
//	// Both sides compute the same Z
//	z := make([]byte, ecdh.SharedSecretSize(recipient.Curve))
//	_, _ = ecdh.DeriveSharedSecretInto(z, eph, recipient)
package ecdh

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedCurve is returned for curves other than P-256, P-384 and P-521
	ErrUnsupportedCurve = errors.New("ecdh: unsupported curve")

	// ErrCurveMismatch is returned when the two keys are on different curves
	ErrCurveMismatch = errors.New("ecdh: curve mismatch")

	// ErrInvalidKey is returned for nil or invalid keys
	ErrInvalidKey = errors.New("ecdh: invalid key")
)

// SharedSecretSize returns the length of Z in bytes for curve, which is
// the curve's field size rounded up to whole bytes.
func SharedSecretSize(curve elliptic.Curve) int {
	return (curve.Params().BitSize + 7) / 8
}

// GenerateEphemeralKey creates a fresh key pair on curve.
func GenerateEphemeralKey(curve elliptic.Curve) (*ecdsa.PrivateKey, error) {
	if _, err := curveToECDH(curve); err != nil {
		return nil, err
	}
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("ecdh: generate ephemeral key: %w", err)
	}
	return priv, nil
}

// DeriveSharedSecretInto performs ECDH key agreement between a private key
// and a public key, writing Z into dst. dst must hold at least
// SharedSecretSize bytes. It returns the number of bytes written.
//
// Both keys must use the same elliptic curve. The public key is checked to
// be a valid point on that curve.
func DeriveSharedSecretInto(dst []byte, privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey) (int, error) {
	if privateKey == nil || publicKey == nil || publicKey.Curve == nil {
		return 0, ErrInvalidKey
	}

	// Check that curves match
	if privateKey.Curve.Params().Name != publicKey.Curve.Params().Name {
		return 0, fmt.Errorf("%w: private key uses %s, public key uses %s", ErrCurveMismatch,
			privateKey.Curve.Params().Name, publicKey.Curve.Params().Name)
	}
	if _, err := curveToECDH(privateKey.Curve); err != nil {
		return 0, err
	}
	if len(dst) < SharedSecretSize(privateKey.Curve) {
		return 0, fmt.Errorf("ecdh: destination holds %d bytes, need %d", len(dst), SharedSecretSize(privateKey.Curve))
	}

	ecdhPriv, err := privateKey.ECDH()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	ecdhPub, err := publicKey.ECDH()
	if err != nil {
		return 0, fmt.Errorf("%w: public key is not on curve: %v", ErrInvalidKey, err)
	}

	z, err := ecdhPriv.ECDH(ecdhPub)
	if err != nil {
		return 0, fmt.Errorf("ecdh: key agreement failed: %w", err)
	}
	n := copy(dst, z)
	clear(z)
	return n, nil
}

// DeriveSharedSecret is DeriveSharedSecretInto with a heap-allocated result.
func DeriveSharedSecret(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey) ([]byte, error) {
	if privateKey == nil {
		return nil, ErrInvalidKey
	}
	z := make([]byte, SharedSecretSize(privateKey.Curve))
	if _, err := DeriveSharedSecretInto(z, privateKey, publicKey); err != nil {
		return nil, err
	}
	return z, nil
}

// curveToECDH maps elliptic.Curve to ecdh.Curve
func curveToECDH(curve elliptic.Curve) (ecdh.Curve, error) {
	if curve == nil {
		return nil, ErrUnsupportedCurve
	}
	switch curve.Params().Name {
	case "P-256":
		return ecdh.P256(), nil
	case "P-384":
		return ecdh.P384(), nil
	case "P-521":
		return ecdh.P521(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurve, curve.Params().Name)
	}
}
