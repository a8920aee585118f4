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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestECRoundTrip(t *testing.T) {
	for _, curve := range []elliptic.Curve{elliptic.P256(), elliptic.P384(), elliptic.P521()} {
		t.Run(curve.Params().Name, func(t *testing.T) {
			priv, err := ecdsa.GenerateKey(curve, rand.Reader)
			require.NoError(t, err)

			j, err := FromPublicKey(&priv.PublicKey)
			require.NoError(t, err)
			assert.Equal(t, KeyTypeEC, j.Kty)

			size := (curve.Params().BitSize + 7) / 8
			x, _ := base64.RawURLEncoding.DecodeString(j.X)
			assert.Len(t, x, size)

			data, err := j.Marshal()
			require.NoError(t, err)
			parsed, err := Unmarshal(data)
			require.NoError(t, err)

			pub, err := parsed.ToPublicKey()
			require.NoError(t, err)
			assert.True(t, priv.PublicKey.Equal(pub))
		})
	}
}

func TestECPadsCoordinates(t *testing.T) {
	curve := elliptic.P256()
	for {
		priv, err := ecdsa.GenerateKey(curve, rand.Reader)
		require.NoError(t, err)
		if priv.X.BitLen() > 248 {
			continue
		}
		j, err := FromECDSA(&priv.PublicKey)
		require.NoError(t, err)
		x, _ := base64.RawURLEncoding.DecodeString(j.X)
		assert.Len(t, x, 32)
		assert.Zero(t, x[0])
		return
	}
}

func TestToECDSARejects(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	good, err := FromECDSA(&priv.PublicKey)
	require.NoError(t, err)

	offCurve := *good
	y, _ := base64.RawURLEncoding.DecodeString(good.Y)
	y[len(y)-1] ^= 0x01
	offCurve.Y = base64.RawURLEncoding.EncodeToString(y)

	short := *good
	short.X = base64.RawURLEncoding.EncodeToString([]byte{1, 2, 3})

	wrongCurve := *good
	wrongCurve.Crv = "secp256k1"

	missing := *good
	missing.Y = ""

	tests := map[string]struct {
		jwk  JWK
		want error
	}{
		"off curve":  {offCurve, ErrInvalidKey},
		"short x":    {short, ErrInvalidKey},
		"curve":      {wrongCurve, ErrUnsupportedKey},
		"missing y":  {missing, ErrInvalidKey},
		"rsa kty":    {JWK{Kty: KeyTypeRSA}, ErrInvalidKey},
		"bad base64": {JWK{Kty: KeyTypeEC, Crv: CurveP256, X: "!!", Y: good.Y}, ErrInvalidKey},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tt.jwk.ToECDSA()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRSARoundTrip(t *testing.T) {
	pub := &rsa.PublicKey{N: new(big.Int).Lsh(big.NewInt(1), 2047), E: 65537}
	j, err := FromPublicKey(pub)
	require.NoError(t, err)
	assert.Equal(t, "AQAB", j.E)

	got, err := j.ToPublicKey()
	require.NoError(t, err)
	assert.True(t, pub.Equal(got))

	_, err = (&JWK{Kty: KeyTypeRSA, N: j.N, E: "AQ"}).ToPublicKey()
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestUnsupported(t *testing.T) {
	_, err := FromPublicKey([]byte("secret"))
	assert.ErrorIs(t, err, ErrUnsupportedKey)

	_, err = (&JWK{Kty: "oct"}).ToPublicKey()
	assert.ErrorIs(t, err, ErrUnsupportedKey)

	_, err = CurveName(elliptic.P224())
	assert.ErrorIs(t, err, ErrUnsupportedKey)

	_, err = Unmarshal([]byte("{"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestThumbprint(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	j, err := FromECDSA(&priv.PublicKey)
	require.NoError(t, err)
	j.Kid = "ignored"
	j.Use = "enc"

	canonical := `{"crv":"P-256","kty":"EC","x":"` + j.X + `","y":"` + j.Y + `"}`
	sum := sha256.Sum256([]byte(canonical))
	want := base64.RawURLEncoding.EncodeToString(sum[:])

	got, err := j.Thumbprint(crypto.SHA256)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = ThumbprintSHA256(&priv.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestThumbprintRSA(t *testing.T) {
	pub := &rsa.PublicKey{N: big.NewInt(0xC0FFEE), E: 65537}
	j, _ := FromPublicKey(pub)

	canonical := `{"e":"AQAB","kty":"RSA","n":"` + j.N + `"}`
	sum := sha256.Sum256([]byte(canonical))

	got, err := Thumbprint(pub, crypto.SHA256)
	require.NoError(t, err)
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), got)

	_, err = (&JWK{Kty: KeyTypeEC}).Thumbprint(crypto.SHA256)
	assert.ErrorIs(t, err, ErrInvalidKey)
}
