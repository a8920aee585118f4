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
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/jeremyhahn/go-josekit/pkg/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youmark/pkcs8"
)

func testPool(t *testing.T) *memory.Pool {
	t.Helper()
	pool := memory.NewPool(&memory.PoolConfig{DisableMemoryLock: true})
	t.Cleanup(pool.Dispose)
	return pool
}

func TestKeySizes_Contains(t *testing.T) {
	tests := []struct {
		name  string
		sizes KeySizes
		bits  int
		want  bool
	}{
		{"fixed match", Fixed(128), 128, true},
		{"fixed miss", Fixed(128), 136, false},
		{"range min", KeySizes{2048, 16384, 8}, 2048, true},
		{"range max", KeySizes{2048, 16384, 8}, 16384, true},
		{"range step", KeySizes{2048, 16384, 8}, 2056, true},
		{"range off step", KeySizes{2048, 16384, 8}, 2049, false},
		{"range below", KeySizes{2048, 16384, 8}, 2040, false},
		{"range above", KeySizes{2048, 16384, 8}, 16392, false},
		{"unbounded", KeySizes{256, Unbounded, 8}, 1 << 20, true},
		{"unbounded below", KeySizes{256, Unbounded, 8}, 248, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sizes.Contains(tt.bits))
		})
	}
}

func TestIsLegalSize(t *testing.T) {
	legal := []KeySizes{Fixed(256), Fixed(384), Fixed(521)}
	assert.True(t, IsLegalSize(521, legal))
	assert.False(t, IsLegalSize(512, legal))
	assert.False(t, IsLegalSize(256, nil))
}

func TestKeyType_String(t *testing.T) {
	assert.Equal(t, "symmetric", KeyTypeSymmetric.String())
	assert.Equal(t, "rsa", KeyTypeRSA.String())
	assert.Equal(t, "ecc", KeyTypeECC.String())
	assert.Equal(t, "unknown", KeyTypeUnknown.String())
}

func TestSymmetricKey_CopiesInput(t *testing.T) {
	raw := bytes.Repeat([]byte{0x11}, 32)
	key, err := NewSymmetricKey(testPool(t), raw)
	require.NoError(t, err)
	defer key.Dispose()

	raw[0] = 0xFF
	assert.Equal(t, byte(0x11), key.Bytes()[0])
	assert.Equal(t, 256, key.KeySizeBits())
	assert.Equal(t, 32, key.KeySizeBytes())
	assert.Equal(t, KeyTypeSymmetric, key.KeyType())
}

func TestSymmetricKey_TryExportKey(t *testing.T) {
	raw := []byte("0123456789abcdef")
	key, err := NewSymmetricKey(testPool(t), raw)
	require.NoError(t, err)
	defer key.Dispose()

	small := make([]byte, 8)
	n, ok, err := key.TryExportKey(small)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, n)

	dst := make([]byte, 32)
	n, ok, err = key.TryExportKey(dst)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, raw, dst[:n])
}

func TestSymmetricKey_Dispose(t *testing.T) {
	key, err := NewSymmetricKey(testPool(t), []byte("secret-key-bytes"))
	require.NoError(t, err)

	key.Dispose()
	key.Dispose()
	assert.True(t, key.IsDisposed())
	assert.Nil(t, key.Bytes())
	assert.Equal(t, 128, key.KeySizeBits(), "size survives disposal")

	_, _, err = key.TryExportKey(make([]byte, 32))
	assert.ErrorIs(t, err, ErrKeyDisposed)
}

func TestSymmetricKey_FromBuffer(t *testing.T) {
	pool := testPool(t)
	buf, err := pool.Rent(24)
	require.NoError(t, err)

	key, err := NewSymmetricKeyFromBuffer(buf)
	require.NoError(t, err)
	assert.Equal(t, 192, key.KeySizeBits())

	key.Dispose()
	assert.True(t, buf.IsDisposed(), "key owns the buffer")

	_, err = NewSymmetricKeyFromBuffer(buf)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestGenerateSymmetricKey(t *testing.T) {
	key, err := GenerateSymmetricKey(testPool(t), 256)
	require.NoError(t, err)
	defer key.Dispose()
	assert.Equal(t, 32, key.KeySizeBytes())
	assert.NotEqual(t, make([]byte, 32), key.Bytes())

	_, err = GenerateSymmetricKey(nil, 12)
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestValidate(t *testing.T) {
	sym, err := NewSymmetricKey(testPool(t), make([]byte, 16))
	require.NoError(t, err)
	defer sym.Dispose()

	got, err := Validate[*SymmetricSecretKey](sym, []KeySizes{Fixed(128)})
	require.NoError(t, err)
	assert.Same(t, sym, got)

	_, err = Validate[*SymmetricSecretKey](sym, []KeySizes{Fixed(256)})
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = Validate[*RSASecretKey](sym, nil)
	require.ErrorIs(t, err, ErrInvalidKeyType)
	assert.Contains(t, err.Error(), "*secret.RSASecretKey")
	assert.Contains(t, err.Error(), "*secret.SymmetricSecretKey")

	_, err = Validate[*ECCSecretKey](nil, nil)
	assert.ErrorIs(t, err, ErrInvalidKeyType)

	sym.Dispose()
	_, err = Validate[*SymmetricSecretKey](sym, nil)
	assert.ErrorIs(t, err, ErrKeyDisposed)
}

func TestECCKey(t *testing.T) {
	curves := []struct {
		curve elliptic.Curve
		bits  int
	}{
		{elliptic.P256(), 256},
		{elliptic.P384(), 384},
		{elliptic.P521(), 521},
	}
	for _, tc := range curves {
		t.Run(tc.curve.Params().Name, func(t *testing.T) {
			key, err := GenerateECCKey(tc.curve)
			require.NoError(t, err)
			defer key.Dispose()

			assert.Equal(t, KeyTypeECC, key.KeyType())
			assert.Equal(t, tc.bits, key.KeySizeBits())
			assert.Equal(t, tc.bits/8, key.KeySizeBytes())
			assert.True(t, key.HasPrivateKey())
			_, ok := key.PrivateKey()
			assert.True(t, ok)
		})
	}
}

func TestAsymmetricKey_ExportPKCS8(t *testing.T) {
	key, err := GenerateECCKey(elliptic.P256())
	require.NoError(t, err)
	defer key.Dispose()

	n, ok, err := key.TryExportKey(make([]byte, 4))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, n)

	dst := make([]byte, 1024)
	n, ok, err = key.TryExportKey(dst)
	require.NoError(t, err)
	require.True(t, ok)

	parsed, err := pkcs8.ParsePKCS8PrivateKey(dst[:n])
	require.NoError(t, err)
	priv, isECDSA := parsed.(*ecdsa.PrivateKey)
	require.True(t, isECDSA)
	assert.True(t, priv.PublicKey.Equal(key.PublicKey()))
}

func TestAsymmetricKey_ExportPublicOnly(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	key, err := NewECCKey(&priv.PublicKey, false)
	require.NoError(t, err)
	assert.False(t, key.HasPrivateKey())

	buf, err := ExportKey(testPool(t), key)
	require.NoError(t, err)
	defer buf.Dispose()

	pub, err := x509.ParsePKIXPublicKey(buf.Bytes())
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(pub))
}

func TestExportKey_GrowsBuffer(t *testing.T) {
	key, err := GenerateRSAKey(2048)
	require.NoError(t, err)
	defer key.Dispose()

	// PKCS#8 for RSA-2048 is well over the initial 256-byte attempt.
	buf, err := ExportKey(testPool(t), key)
	require.NoError(t, err)
	defer buf.Dispose()

	parsed, err := pkcs8.ParsePKCS8PrivateKey(buf.Bytes())
	require.NoError(t, err)
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	require.True(t, ok)
	assert.Equal(t, 0, rsaKey.N.Cmp(key.PublicKey().N))
}

func TestRSAKey_OwnedDisposeScrubs(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	key, err := NewRSAKey(priv, true)
	require.NoError(t, err)
	assert.Equal(t, 2048, key.KeySizeBits())
	assert.True(t, key.Owns())

	key.Dispose()
	assert.True(t, key.IsDisposed())
	assert.Zero(t, priv.D.Sign())
	for _, p := range priv.Primes {
		assert.Zero(t, p.Sign())
	}
	assert.Nil(t, key.Signer())
	assert.Equal(t, 2048, key.KeySizeBits())
}

func TestRSAKey_BorrowedDisposeLeavesHandle(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	d := new(big.Int).Set(priv.D)

	key, err := NewRSAKey(priv, false)
	require.NoError(t, err)
	key.Dispose()

	assert.Equal(t, 0, priv.D.Cmp(d))
}

type closingSigner struct {
	crypto.Signer
	closed bool
}

func (c *closingSigner) Close() error {
	c.closed = true
	return nil
}

func TestAsymmetricKey_ClosesOwnedHandle(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	signer := &closingSigner{Signer: priv}

	key, err := NewECCKey(signer, true)
	require.NoError(t, err)
	_, ok := key.PrivateKey()
	assert.False(t, ok, "opaque signer exposes no scalar")

	_, _, err = key.TryExportKey(make([]byte, 1024))
	assert.ErrorIs(t, err, ErrNotExportable)

	key.Dispose()
	assert.True(t, signer.closed)
}

func TestRSAKey_BoundarySizesFromPublicKey(t *testing.T) {
	legal := []KeySizes{{MinSize: 2048, MaxSize: 16384, SkipSize: 8}}
	for _, bits := range []int{2048, 16384} {
		n := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
		key, err := NewRSAKey(&rsa.PublicKey{N: n, E: 65537}, false)
		require.NoError(t, err)
		_, err = Validate[*RSASecretKey](key, legal)
		assert.NoError(t, err, "%d bits", bits)
	}

	n := new(big.Int).Lsh(big.NewInt(1), 2039)
	key, err := NewRSAKey(&rsa.PublicKey{N: n, E: 65537}, false)
	require.NoError(t, err)
	_, err = Validate[*RSASecretKey](key, legal)
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestNewKey_WrongFamily(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	_, err = NewRSAKey(priv, false)
	assert.ErrorIs(t, err, ErrInvalidKeyType)

	_, err = NewECCKey(nil, false)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewECCKey("not a key", false)
	assert.ErrorIs(t, err, ErrInvalidKeyType)
}

func selfSigned(t *testing.T, signer crypto.Signer) *x509.Certificate {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "josekit test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, signer.Public(), signer)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestCertificateKey(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	cert := selfSigned(t, priv)

	key, err := NewCertificateKey(cert, priv, false)
	require.NoError(t, err)
	ecc, ok := key.(*ECCSecretKey)
	require.True(t, ok)
	assert.Same(t, cert, ecc.Certificate())
	assert.True(t, ecc.HasPrivateKey())

	verifyOnly, err := NewCertificateKey(cert, nil, false)
	require.NoError(t, err)
	assert.False(t, verifyOnly.(*ECCSecretKey).HasPrivateKey())

	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	_, err = NewCertificateKey(cert, other, false)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestPEM_RoundTrip(t *testing.T) {
	ecc, err := GenerateECCKey(elliptic.P256())
	require.NoError(t, err)
	defer ecc.Dispose()

	password := []byte("pem-secret")
	data, err := MarshalPEM(ecc, password)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ENCRYPTED PRIVATE KEY")

	parsed, err := ParsePEM(data, password)
	require.NoError(t, err)
	defer parsed.Dispose()
	typed, ok := parsed.(*ECCSecretKey)
	require.True(t, ok)
	assert.True(t, typed.HasPrivateKey())
	assert.True(t, typed.PublicKey().Equal(ecc.PublicKey()))
	assert.True(t, typed.Owns())

	pub, err := Public(ecc)
	require.NoError(t, err)
	assert.False(t, pub.(*ECCSecretKey).HasPrivateKey())
	assert.False(t, pub.(*ECCSecretKey).Owns())
	pubPEM, err := MarshalPEM(pub, nil)
	require.NoError(t, err)
	assert.Contains(t, string(pubPEM), "BEGIN PUBLIC KEY")
	pub.Dispose()
	assert.False(t, ecc.IsDisposed())
}

func TestPEM_RSAAndCertificate(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	key, err := NewRSAKey(priv, false)
	require.NoError(t, err)

	data, err := MarshalPEM(key, nil)
	require.NoError(t, err)
	parsed, err := ParsePEM(data, nil)
	require.NoError(t, err)
	assert.Equal(t, KeyTypeRSA, parsed.KeyType())
	assert.Equal(t, 2048, parsed.KeySizeBits())

	cert := selfSigned(t, priv)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	fromCert, err := ParsePEM(certPEM, nil)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(fromCert.(*RSASecretKey).PublicKey()))
	assert.NotNil(t, fromCert.(*RSASecretKey).Certificate())
}

func TestPEM_Errors(t *testing.T) {
	sym, err := GenerateSymmetricKey(nil, 128)
	require.NoError(t, err)
	defer sym.Dispose()

	_, err = MarshalPEM(sym, nil)
	assert.ErrorIs(t, err, ErrNotExportable)
	_, err = Public(sym)
	assert.ErrorIs(t, err, ErrNotExportable)
	_, err = MarshalPEM(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidKey)

	ecc, err := GenerateECCKey(elliptic.P384())
	require.NoError(t, err)
	ecc.Dispose()
	_, err = MarshalPEM(ecc, nil)
	assert.ErrorIs(t, err, ErrKeyDisposed)

	_, err = ParsePEM([]byte("not pem"), nil)
	assert.Error(t, err)
}
