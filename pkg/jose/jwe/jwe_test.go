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

package jwe

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-josekit/pkg/crypto/wrapping"
	"github.com/jeremyhahn/go-josekit/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-josekit/pkg/jose/header"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/memory"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

var rsaKey = sync.OnceValue(func() *rsa.PrivateKey {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return k
})

// fastOptions keeps PBKDF2 cheap in tests.
func fastOptions(t *testing.T) *Options {
	t.Helper()
	pool := memory.NewPool(&memory.PoolConfig{MaxRetained: 8, DisableMemoryLock: true})
	t.Cleanup(pool.Dispose)
	return &Options{Pool: pool, PBES2Iterations: 1000, MaxPBES2Iterations: 4000}
}

func registry(t *testing.T, opts *Options) *jwa.Registry {
	t.Helper()
	r, err := jwa.NewRegistry(Sources(opts)...)
	require.NoError(t, err)
	return r
}

func symmetric(t *testing.T, raw []byte) *secret.SymmetricSecretKey {
	t.Helper()
	k, err := secret.NewSymmetricKey(nil, raw)
	require.NoError(t, err)
	t.Cleanup(k.Dispose)
	return k
}

func sequential(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i + 1)
	}
	return b
}

func eccKey(t *testing.T, curve elliptic.Curve) *secret.ECCSecretKey {
	t.Helper()
	k, err := secret.GenerateECCKey(curve)
	require.NoError(t, err)
	t.Cleanup(k.Dispose)
	return k
}

func TestSources(t *testing.T) {
	r := registry(t, nil)
	assert.Equal(t, []string{
		A128KW, A192KW, A256KW, Direct,
		ECDHES, ECDHESA128KW, ECDHESA192KW, ECDHESA256KW,
		PBES2HS256A128KW, PBES2HS384A192KW, PBES2HS512A256KW,
		RSAOAEP, RSAOAEP256,
	}, r.Codes(jwa.KindKeyManagement))
	assert.Equal(t, []string{
		A128CBCHS256, A128GCM, A192CBCHS384, A192GCM, A256CBCHS512, A256GCM,
	}, r.Codes(jwa.KindContentEncryption))
}

// roundTrip wraps a fresh CEK for enc and unwraps it again.
func roundTrip(t *testing.T, alg jwa.KeyManagementAlgorithm, enc jwa.ContentEncryptionAlgorithm, wrapKey, unwrapKey secret.SecretKey) {
	t.Helper()
	h := header.New()
	h.Set(header.Algorithm, alg.Code())
	h.Set(header.Encryption, enc.Code())

	cek := make([]byte, enc.CEKSizeBytes())
	dst := make([]byte, alg.EncryptedCEKSizeBytes(wrapKey.KeySizeBits(), len(cek)))
	n, ok, err := alg.TryWrapNewKey(wrapKey, h, cek, dst)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, len(dst), n)

	// The recipient only sees the serialized header.
	encoded, err := h.Encode()
	require.NoError(t, err)
	parsed, err := header.Parse(encoded)
	require.NoError(t, err)

	out := make([]byte, len(cek))
	m, ok, err := alg.TryUnwrapKey(unwrapKey, parsed, dst[:n], out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cek, out[:m])

	iv := make([]byte, enc.IVSizeBytes())
	_, _ = rand.Read(iv)
	ct, tag, err := enc.Encrypt(cek, iv, []byte("payload"), []byte(encoded))
	require.NoError(t, err)
	pt, err := enc.Decrypt(out[:m], iv, ct, tag, []byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(pt))
}

type keyManagementCase struct {
	alg, enc string
	wrap     secret.SecretKey
	unwrap   secret.SecretKey
}

func TestRoundTrip(t *testing.T) {
	opts := fastOptions(t)
	r := registry(t, opts)
	rsaPriv, err := secret.NewRSAKey(rsaKey(), false)
	require.NoError(t, err)

	tests := []keyManagementCase{
		{A128KW, A128GCM, symmetric(t, sequential(16)), nil},
		{A192KW, A192CBCHS384, symmetric(t, sequential(24)), nil},
		{A256KW, A256CBCHS512, symmetric(t, sequential(32)), nil},
		{PBES2HS256A128KW, A128CBCHS256, symmetric(t, []byte("correct horse")), nil},
		{PBES2HS384A192KW, A192GCM, symmetric(t, []byte("battery staple")), nil},
		{PBES2HS512A256KW, A256GCM, symmetric(t, []byte("Thus from my lips")), nil},
		{RSAOAEP, A128GCM, rsaPriv, nil},
		{RSAOAEP256, A256CBCHS512, rsaPriv, nil},
	}
	for _, curve := range []elliptic.Curve{elliptic.P256(), elliptic.P384(), elliptic.P521()} {
		k := eccKey(t, curve)
		pub, err := secret.NewECCKey(k.PublicKey(), false)
		require.NoError(t, err)
		for _, alg := range []string{ECDHES, ECDHESA128KW, ECDHESA192KW, ECDHESA256KW} {
			tests = append(tests, keyManagementCase{alg, A256CBCHS512, pub, k})
		}
	}

	for _, tt := range tests {
		t.Run(tt.alg+"/"+tt.enc, func(t *testing.T) {
			alg, err := r.KeyManagement(tt.alg)
			require.NoError(t, err)
			enc, err := r.ContentEncryption(tt.enc)
			require.NoError(t, err)
			unwrap := tt.unwrap
			if unwrap == nil {
				unwrap = tt.wrap
			}
			roundTrip(t, alg, enc, tt.wrap, unwrap)
		})
	}
}

func TestDirect(t *testing.T) {
	alg := NewDirect()
	key := symmetric(t, sequential(32))
	h := header.New()

	cek := make([]byte, 32)
	n, ok, err := alg.TryWrapNewKey(key, h, cek, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, n)
	assert.Equal(t, sequential(32), cek)
	assert.Zero(t, alg.EncryptedCEKSizeBytes(256, 32))
	assert.Equal(t, []secret.KeySizes{secret.Fixed(32)}, alg.LegalCEKByteSizes(256))

	_, _, err = alg.TryWrapKey(key, h, cek, make([]byte, 64))
	assert.ErrorIs(t, err, jwa.ErrUnsupportedOperation)

	_, _, err = alg.TryWrapNewKey(key, h, make([]byte, 16), nil)
	assert.ErrorIs(t, err, secret.ErrInvalidKeySize)

	out := make([]byte, 32)
	n, ok, err = alg.TryUnwrapKey(key, h, nil, out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sequential(32), out[:n])

	_, ok, err = alg.TryUnwrapKey(key, h, nil, make([]byte, 8))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = alg.TryUnwrapKey(key, h, []byte{1}, out)
	assert.ErrorIs(t, err, jwa.ErrMalformedToken)
}

func TestAESKeyWrapExample(t *testing.T) {
	// RFC 7516 appendix A.3
	kek, err := header.DecodeSegment("GawgguFyGrWKav7AX4VKUg")
	require.NoError(t, err)
	cek := []byte{
		4, 211, 31, 197, 84, 157, 252, 254, 11, 100, 157, 250, 63, 170, 106,
		206, 107, 124, 212, 45, 111, 107, 9, 219, 200, 177, 0, 240, 143, 156,
		44, 207,
	}
	want := "6KB707dM9YTIgHtLvtgWQ8mKwboJW3of9locizkDTHzBC2IlrT1oOQ"

	alg := NewAESKeyWrap(A128KW, 128)
	key := symmetric(t, kek)
	dst := make([]byte, alg.EncryptedCEKSizeBytes(128, len(cek)))
	n, ok, err := alg.TryWrapKey(key, nil, cek, dst)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, header.EncodeSegment(dst[:n]))

	out := make([]byte, len(cek))
	n, ok, err = alg.TryUnwrapKey(key, nil, dst, out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cek, out[:n])
}

func TestAESKeyWrapErrors(t *testing.T) {
	alg := NewAESKeyWrap(A128KW, 128)
	key := symmetric(t, sequential(16))

	cek := sequential(16)
	dst := make([]byte, 24)
	_, ok, err := alg.TryWrapKey(key, nil, cek, dst[:23])
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = alg.TryWrapKey(key, nil, sequential(15), dst)
	assert.ErrorIs(t, err, secret.ErrInvalidKeySize)

	_, _, err = alg.TryWrapKey(symmetric(t, sequential(32)), nil, cek, dst)
	assert.ErrorIs(t, err, secret.ErrInvalidKeySize)

	_, ok, err = alg.TryWrapKey(key, nil, cek, dst)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = alg.TryUnwrapKey(key, nil, dst, make([]byte, 8))
	require.NoError(t, err)
	assert.False(t, ok)

	tampered := bytes.Clone(dst)
	tampered[5] ^= 0x01
	_, _, err = alg.TryUnwrapKey(key, nil, tampered, make([]byte, 16))
	assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)

	_, _, err = alg.TryUnwrapKey(key, nil, dst[:20], make([]byte, 16))
	assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)
}

func bigFromSegment(t *testing.T, s string) *big.Int {
	t.Helper()
	b, err := header.DecodeSegment(s)
	require.NoError(t, err)
	return new(big.Int).SetBytes(b)
}

func TestECDHESAppendixC(t *testing.T) {
	// RFC 7518 appendix C: Bob receives Alice's ephemeral key.
	bob := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     bigFromSegment(t, "weNJy2HscCSM6AEDTDg04biOvhFhyyWvOHQfeF_PxMQ"),
			Y:     bigFromSegment(t, "e8lnCO-AlStT-NJVX-crhB7QRYhiix03illJOVAOyck"),
		},
		D: bigFromSegment(t, "VEmDZpDXXK8p8N0Cndsxs924q6nS1RXFASRl6BfUqdw"),
	}
	key, err := secret.NewECCKey(bob, false)
	require.NoError(t, err)

	h := header.New()
	h.Set(header.Algorithm, ECDHES)
	h.Set(header.Encryption, A128GCM)
	h.Set(header.AgreementPartyUInfo, "QWxpY2U")
	h.Set(header.AgreementPartyVInfo, "Qm9i")
	h.Set(header.EphemeralPublicKey, map[string]any{
		"kty": "EC",
		"crv": "P-256",
		"x":   "gI0GAILBdu7T53akrFmMyGcsF3n5dO7MmwNBHKW5SV0",
		"y":   "SLW_xSffzlPWrHEVI30DHM_4egVwt3NQqeUD7nMFpps",
	})

	cek := make([]byte, 16)
	n, ok, err := NewECDH(ECDHES, 0, nil).TryUnwrapKey(key, h, nil, cek)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "VqqN6vgjbSBcIijNcacQGg", header.EncodeSegment(cek[:n]))
}

func TestECDHESHeader(t *testing.T) {
	k := eccKey(t, elliptic.P256())
	alg := NewECDH(ECDHESA128KW, 128, nil)

	h := header.New()
	h.SetBytes(header.AgreementPartyUInfo, []byte("Alice"))
	cek := make([]byte, 32)
	dst := make([]byte, 40)
	_, ok, err := alg.TryWrapNewKey(k, h, cek, dst)
	require.NoError(t, err)
	require.True(t, ok)

	var epk jwk.JWK
	require.NoError(t, h.Decode(header.EphemeralPublicKey, &epk))
	assert.Equal(t, jwk.KeyTypeEC, epk.Kty)
	assert.Equal(t, jwk.CurveP256, epk.Crv)
	assert.NotEmpty(t, epk.Kid)
	assert.Empty(t, epk.N)

	// Party info is bound into the derivation.
	h.SetBytes(header.AgreementPartyUInfo, []byte("Mallory"))
	_, _, err = alg.TryUnwrapKey(k, h, dst, make([]byte, 32))
	assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)
}

func TestECDHESErrors(t *testing.T) {
	k := eccKey(t, elliptic.P256())
	direct := NewECDH(ECDHES, 0, nil)

	t.Run("direct requires enc", func(t *testing.T) {
		_, _, err := direct.TryWrapNewKey(k, header.New(), make([]byte, 16), nil)
		assert.ErrorIs(t, err, jwa.ErrMalformedToken)
	})

	t.Run("direct cannot wrap", func(t *testing.T) {
		_, _, err := direct.TryWrapKey(k, header.New(), make([]byte, 16), make([]byte, 32))
		assert.ErrorIs(t, err, jwa.ErrUnsupportedOperation)
	})

	t.Run("missing epk", func(t *testing.T) {
		h := header.New()
		h.Set(header.Encryption, A128GCM)
		_, _, err := direct.TryUnwrapKey(k, h, nil, make([]byte, 16))
		assert.ErrorIs(t, err, jwa.ErrMalformedToken)
	})

	t.Run("curve mismatch", func(t *testing.T) {
		other := eccKey(t, elliptic.P384())
		epk, err := jwk.FromECDSA(other.PublicKey())
		require.NoError(t, err)
		h := header.New()
		h.Set(header.Encryption, A128GCM)
		h.Set(header.EphemeralPublicKey, epk)
		_, _, err = direct.TryUnwrapKey(k, h, nil, make([]byte, 16))
		assert.ErrorIs(t, err, jwa.ErrMalformedToken)
	})

	t.Run("public key cannot unwrap", func(t *testing.T) {
		pub, err := secret.NewECCKey(k.PublicKey(), false)
		require.NoError(t, err)
		_, _, err = direct.TryUnwrapKey(pub, header.New(), nil, make([]byte, 16))
		assert.ErrorIs(t, err, secret.ErrInvalidKey)
	})

	t.Run("wrong key type", func(t *testing.T) {
		_, _, err := direct.TryWrapNewKey(symmetric(t, sequential(16)), header.New(), make([]byte, 16), nil)
		assert.ErrorIs(t, err, secret.ErrInvalidKeyType)
	})

	t.Run("non-empty encrypted key", func(t *testing.T) {
		_, _, err := direct.TryUnwrapKey(k, header.New(), []byte{1}, make([]byte, 16))
		assert.ErrorIs(t, err, jwa.ErrMalformedToken)
	})
}

func TestPBES2(t *testing.T) {
	opts := fastOptions(t)
	r := registry(t, opts)
	a, err := r.KeyManagement(PBES2HS256A128KW)
	require.NoError(t, err)
	pw := symmetric(t, []byte("Thus from my lips, by yours, my sin is purged."))

	h := header.New()
	cek := make([]byte, 32)
	dst := make([]byte, 40)
	_, ok, err := a.TryWrapNewKey(pw, h, cek, dst)
	require.NoError(t, err)
	require.True(t, ok)

	salt, ok, err := h.GetBytes(header.PBES2SaltInput)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, salt, PBES2SaltSize)
	count, ok, err := h.GetInt(header.PBES2Count)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1000, count)
	assert.Equal(t, count, a.(*PBES2).Iterations())

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := a.TryUnwrapKey(symmetric(t, []byte("wrong password")), h, dst, make([]byte, 32))
		assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)
	})

	t.Run("p2c above limit", func(t *testing.T) {
		c := h.Clone()
		c.Set(header.PBES2Count, 4001)
		_, _, err := a.TryUnwrapKey(pw, c, dst, make([]byte, 32))
		assert.ErrorIs(t, err, jwa.ErrMalformedToken)
	})

	t.Run("missing p2s", func(t *testing.T) {
		c := h.Clone()
		c.Delete(header.PBES2SaltInput)
		_, _, err := a.TryUnwrapKey(pw, c, dst, make([]byte, 32))
		assert.ErrorIs(t, err, jwa.ErrMalformedToken)
	})

	t.Run("short p2s", func(t *testing.T) {
		c := h.Clone()
		c.SetBytes(header.PBES2SaltInput, []byte{1, 2, 3})
		_, _, err := a.TryUnwrapKey(pw, c, dst, make([]byte, 32))
		assert.ErrorIs(t, err, jwa.ErrMalformedToken)
	})

	t.Run("missing p2c", func(t *testing.T) {
		c := h.Clone()
		c.Delete(header.PBES2Count)
		_, _, err := a.TryUnwrapKey(pw, c, dst, make([]byte, 32))
		assert.ErrorIs(t, err, jwa.ErrMalformedToken)
	})

	t.Run("existing p2s and p2c are kept", func(t *testing.T) {
		c := h.Clone()
		c.Set(header.PBES2Count, 2000)
		fresh := make([]byte, 40)
		_, ok, err := a.TryWrapKey(pw, c, sequential(32), fresh)
		require.NoError(t, err)
		require.True(t, ok)
		kept, _, err := c.GetBytes(header.PBES2SaltInput)
		require.NoError(t, err)
		assert.Equal(t, salt, kept)
		out := make([]byte, 32)
		n, ok, err := a.TryUnwrapKey(pw, c, fresh, out)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, sequential(32), out[:n])
	})
}

func TestGeneratePasswordKey(t *testing.T) {
	opts := fastOptions(t)
	k, err := GeneratePasswordKey(opts.Pool, 24)
	require.NoError(t, err)
	defer k.Dispose()
	assert.Equal(t, 24*8, k.KeySizeBits())

	enc, err := NewContentEncryption(A256GCM)
	require.NoError(t, err)
	roundTrip(t, NewPBES2(PBES2HS512A256KW, crypto.SHA512, 256, opts), enc, k, k)
}

func TestRSAOAEP(t *testing.T) {
	priv, err := secret.NewRSAKey(rsaKey(), false)
	require.NoError(t, err)
	pub, err := secret.NewRSAKey(&rsaKey().PublicKey, false)
	require.NoError(t, err)
	alg := NewRSAOAEP(RSAOAEP256, wrapping.WrappingAlgorithmRSAES_OAEP_SHA_256, nil)

	assert.Equal(t, 256, alg.EncryptedCEKSizeBytes(2048, 32))
	assert.Equal(t, []secret.KeySizes{{MinSize: 1, MaxSize: 256 - 66, SkipSize: 1}}, alg.LegalCEKByteSizes(2048))

	cek := sequential(32)
	dst := make([]byte, 256)
	_, ok, err := alg.TryWrapKey(pub, nil, cek, dst[:255])
	require.NoError(t, err)
	assert.False(t, ok)

	n, ok, err := alg.TryWrapKey(pub, nil, cek, dst)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = alg.TryUnwrapKey(priv, nil, dst[:n], make([]byte, 16))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = alg.TryUnwrapKey(pub, nil, dst[:n], make([]byte, 32))
	assert.ErrorIs(t, err, secret.ErrInvalidKey)

	tampered := bytes.Clone(dst[:n])
	tampered[10] ^= 0x01
	_, _, err = alg.TryUnwrapKey(priv, nil, tampered, make([]byte, 32))
	assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)

	_, _, err = alg.TryUnwrapKey(priv, nil, dst[:n-1], make([]byte, 32))
	assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)
}

func TestContentEncryptionErrors(t *testing.T) {
	enc, err := NewContentEncryption(A128GCM)
	require.NoError(t, err)
	assert.Equal(t, 16, enc.CEKSizeBytes())
	assert.Equal(t, 12, enc.IVSizeBytes())

	_, _, err = enc.Encrypt(make([]byte, 8), make([]byte, 12), nil, nil)
	assert.ErrorIs(t, err, secret.ErrInvalidKeySize)

	_, _, err = enc.Encrypt(make([]byte, 16), make([]byte, 8), nil, nil)
	assert.ErrorIs(t, err, jwa.ErrMalformedToken)

	ct, tag, err := enc.Encrypt(make([]byte, 16), make([]byte, 12), []byte("x"), nil)
	require.NoError(t, err)
	tag[0] ^= 1
	_, err = enc.Decrypt(make([]byte, 16), make([]byte, 12), ct, tag, nil)
	assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)

	_, err = NewContentEncryption("A128CTR")
	assert.ErrorIs(t, err, jwa.ErrUnsupportedAlgorithm)
}
