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

package jose

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-josekit/pkg/crypto/aead"
	"github.com/jeremyhahn/go-josekit/pkg/jose/header"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwe"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jws"
	"github.com/jeremyhahn/go-josekit/pkg/jose/zip"
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

var ecKeys sync.Map

func ecKey(curve elliptic.Curve) *ecdsa.PrivateKey {
	if k, ok := ecKeys.Load(curve); ok {
		return k.(*ecdsa.PrivateKey)
	}
	k, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		panic(err)
	}
	actual, _ := ecKeys.LoadOrStore(curve, k)
	return actual.(*ecdsa.PrivateKey)
}

// testConfig returns a config with a private pool and cheap PBES2.
func testConfig(t *testing.T) *Config {
	t.Helper()
	pool := memory.NewPool(&memory.PoolConfig{MaxRetained: 16, DisableMemoryLock: true})
	t.Cleanup(pool.Dispose)
	return &Config{Pool: pool, PBES2Iterations: 1000}
}

func codec(t *testing.T, cfg *Config) (*Encoder, *Decoder) {
	t.Helper()
	enc, err := NewEncoder(cfg)
	require.NoError(t, err)
	dec, err := NewDecoder(cfg)
	require.NoError(t, err)
	return enc, dec
}

func symmetric(t *testing.T, raw []byte) *secret.SymmetricSecretKey {
	t.Helper()
	k, err := secret.NewSymmetricKey(nil, raw)
	require.NoError(t, err)
	t.Cleanup(k.Dispose)
	return k
}

func randomKey(t *testing.T, n int) *secret.SymmetricSecretKey {
	t.Helper()
	raw := make([]byte, n)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	return symmetric(t, raw)
}

func rsaSecret(t *testing.T) (priv, pub *secret.RSASecretKey) {
	t.Helper()
	priv, err := secret.NewRSAKey(rsaKey(), false)
	require.NoError(t, err)
	pub, err = secret.NewRSAKey(&rsaKey().PublicKey, false)
	require.NoError(t, err)
	return priv, pub
}

func ecSecret(t *testing.T, curve elliptic.Curve) (priv, pub *secret.ECCSecretKey) {
	t.Helper()
	k := ecKey(curve)
	priv, err := secret.NewECCKey(k, false)
	require.NoError(t, err)
	pub, err = secret.NewECCKey(&k.PublicKey, false)
	require.NoError(t, err)
	return priv, pub
}

func TestHS256Hello(t *testing.T) {
	ctx := context.Background()
	enc, dec := codec(t, nil)
	zero := make([]byte, 32)
	key := symmetric(t, zero)

	token, err := enc.EncodeSigned(ctx, []byte("hello"), &SigningCredentials{Key: key, Algorithm: jws.HS256}, nil)
	require.NoError(t, err)

	segments := strings.Split(token, ".")
	require.Len(t, segments, 3)
	assert.Equal(t, "eyJhbGciOiJIUzI1NiJ9", segments[0])
	assert.Equal(t, "aGVsbG8", segments[1])

	mac := hmac.New(sha256.New, zero)
	mac.Write([]byte(segments[0] + "." + segments[1]))
	assert.Equal(t, header.EncodeSegment(mac.Sum(nil)), segments[2])

	tok, err := dec.Decode(ctx, token, key)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(tok.Payload))
	assert.False(t, tok.Encrypted)
	assert.Equal(t, jws.HS256, tok.Header.Algorithm())

	flipped := make([]byte, 32)
	flipped[0] = 0x01
	tok, err = dec.Decode(ctx, token, symmetric(t, flipped))
	assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)
	assert.Nil(t, tok)
}

func TestA128KWEncryptedKeySize(t *testing.T) {
	ctx := context.Background()
	enc, dec := codec(t, nil)
	kek := randomKey(t, 16)

	token, err := enc.EncodeEncrypted(ctx, []byte("hello"),
		&EncryptingCredentials{Key: kek, Algorithm: jwe.A128KW, Encryption: jwe.A128GCM}, nil)
	require.NoError(t, err)

	segments := strings.Split(token, ".")
	require.Len(t, segments, 5)
	encryptedKey, err := header.DecodeSegment(segments[1])
	require.NoError(t, err)
	assert.Len(t, encryptedKey, 24)
	iv, err := header.DecodeSegment(segments[2])
	require.NoError(t, err)
	assert.Len(t, iv, 12)
	tag, err := header.DecodeSegment(segments[4])
	require.NoError(t, err)
	assert.Len(t, tag, 16)

	tok, err := dec.Decode(ctx, token, kek)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(tok.Payload))
	assert.True(t, tok.Encrypted)
}

func TestSignedRoundTrip(t *testing.T) {
	ctx := context.Background()
	enc, dec := codec(t, nil)
	rsaPriv, rsaPub := rsaSecret(t)

	tests := []struct {
		alg    string
		sign   secret.SecretKey
		verify secret.SecretKey
	}{
		{jws.HS256, randomKey(t, 32), nil},
		{jws.HS384, randomKey(t, 48), nil},
		{jws.HS512, randomKey(t, 64), nil},
		{jws.RS256, rsaPriv, rsaPub},
		{jws.RS384, rsaPriv, rsaPub},
		{jws.RS512, rsaPriv, rsaPub},
		{jws.PS256, rsaPriv, rsaPub},
		{jws.PS384, rsaPriv, rsaPub},
		{jws.PS512, rsaPriv, rsaPub},
	}
	for _, c := range []struct {
		alg   string
		curve elliptic.Curve
	}{{jws.ES256, elliptic.P256()}, {jws.ES384, elliptic.P384()}, {jws.ES512, elliptic.P521()}} {
		priv, pub := ecSecret(t, c.curve)
		tests = append(tests, struct {
			alg    string
			sign   secret.SecretKey
			verify secret.SecretKey
		}{c.alg, priv, pub})
	}

	for _, tt := range tests {
		t.Run(tt.alg, func(t *testing.T) {
			verify := tt.verify
			if verify == nil {
				verify = tt.sign
			}
			extra := header.New()
			extra.Set(header.Type, "JWT")
			token, err := enc.EncodeSigned(ctx, []byte(`{"sub":"alice"}`),
				&SigningCredentials{Key: tt.sign, Algorithm: tt.alg, KeyID: "k1"}, extra)
			require.NoError(t, err)

			tok, err := dec.Decode(ctx, token, verify)
			require.NoError(t, err)
			assert.Equal(t, `{"sub":"alice"}`, string(tok.Payload))
			assert.Equal(t, []string{header.Algorithm, header.KeyID, header.Type}, tok.Header.Names())
			assert.Equal(t, "k1", tok.Header.KeyID())

			// Flip one signature byte.
			segments := strings.Split(token, ".")
			sig, err := header.DecodeSegment(segments[2])
			require.NoError(t, err)
			sig[len(sig)/2] ^= 0x80
			segments[2] = header.EncodeSegment(sig)
			_, err = dec.Decode(ctx, strings.Join(segments, "."), verify)
			assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)

			// Change the payload.
			segments = strings.Split(token, ".")
			segments[1] = header.EncodeSegment([]byte(`{"sub":"mallory"}`))
			_, err = dec.Decode(ctx, strings.Join(segments, "."), verify)
			assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)
		})
	}
}

func TestEncryptedRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	enc, dec := codec(t, cfg)
	rsaPriv, rsaPub := rsaSecret(t)
	ecPriv, ecPub := ecSecret(t, elliptic.P384())
	password := symmetric(t, []byte("Thus from my lips, by yours, my sin is purged."))

	tests := []struct {
		alg, enc string
		wrap     secret.SecretKey
		unwrap   secret.SecretKey
	}{
		{jwe.Direct, jwe.A128GCM, randomKey(t, 16), nil},
		{jwe.Direct, jwe.A256CBCHS512, randomKey(t, 64), nil},
		{jwe.A128KW, jwe.A128CBCHS256, randomKey(t, 16), nil},
		{jwe.A192KW, jwe.A192GCM, randomKey(t, 24), nil},
		{jwe.A256KW, jwe.A256GCM, randomKey(t, 32), nil},
		{jwe.ECDHES, jwe.A256GCM, ecPub, ecPriv},
		{jwe.ECDHESA128KW, jwe.A128GCM, ecPub, ecPriv},
		{jwe.ECDHESA192KW, jwe.A192CBCHS384, ecPub, ecPriv},
		{jwe.ECDHESA256KW, jwe.A256CBCHS512, ecPub, ecPriv},
		{jwe.PBES2HS256A128KW, jwe.A128GCM, password, nil},
		{jwe.PBES2HS384A192KW, jwe.A192GCM, password, nil},
		{jwe.PBES2HS512A256KW, jwe.A256GCM, password, nil},
		{jwe.RSAOAEP, jwe.A128GCM, rsaPub, rsaPriv},
		{jwe.RSAOAEP256, jwe.A256CBCHS512, rsaPub, rsaPriv},
	}
	payload := []byte(strings.Repeat("The true sign of intelligence is not knowledge but imagination. ", 8))

	for _, tt := range tests {
		for _, compression := range []string{"", zip.Deflate} {
			t.Run(tt.alg+"/"+tt.enc+"/"+compression, func(t *testing.T) {
				unwrap := tt.unwrap
				if unwrap == nil {
					unwrap = tt.wrap
				}
				token, err := enc.EncodeEncrypted(ctx, payload, &EncryptingCredentials{
					Key: tt.wrap, Algorithm: tt.alg, Encryption: tt.enc, Compression: compression,
				}, nil)
				require.NoError(t, err)

				tok, err := dec.Decode(ctx, token, unwrap)
				require.NoError(t, err)
				assert.Equal(t, payload, tok.Payload)
				assert.Equal(t, tt.enc, tok.Header.Encryption())
				assert.Equal(t, compression, tok.Header.Compression())

				segments := strings.Split(token, ".")
				tag, err := header.DecodeSegment(segments[4])
				require.NoError(t, err)
				tag[0] ^= 0x01
				segments[4] = header.EncodeSegment(tag)
				_, err = dec.Decode(ctx, strings.Join(segments, "."), unwrap)
				assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)
			})
		}
	}

	// Every content key lease was returned.
	assert.Zero(t, cfg.Pool.Stats().Outstanding)
}

func TestEncryptedTamperedHeader(t *testing.T) {
	ctx := context.Background()
	enc, dec := codec(t, nil)
	kek := randomKey(t, 32)

	token, err := enc.EncodeEncrypted(ctx, []byte("secret"),
		&EncryptingCredentials{Key: kek, Algorithm: jwe.A256KW, Encryption: jwe.A256GCM}, nil)
	require.NoError(t, err)

	segments := strings.Split(token, ".")
	h, err := header.Parse(segments[0])
	require.NoError(t, err)
	h.Set(header.ContentType, "JWT")
	segments[0], err = h.Encode()
	require.NoError(t, err)

	_, err = dec.Decode(ctx, strings.Join(segments, "."), kek)
	assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)

	segments = strings.Split(token, ".")
	ct, err := header.DecodeSegment(segments[3])
	require.NoError(t, err)
	ct[0] ^= 0x01
	segments[3] = header.EncodeSegment(ct)
	_, err = dec.Decode(ctx, strings.Join(segments, "."), kek)
	assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)
}

func TestWrongUnwrapKey(t *testing.T) {
	ctx := context.Background()
	enc, dec := codec(t, nil)
	_, rsaPub := rsaSecret(t)
	other, err := secret.GenerateRSAKey(2048)
	require.NoError(t, err)
	defer other.Dispose()

	token, err := enc.EncodeEncrypted(ctx, []byte("secret"),
		&EncryptingCredentials{Key: rsaPub, Algorithm: jwe.RSAOAEP256, Encryption: jwe.A128GCM}, nil)
	require.NoError(t, err)
	_, err = dec.Decode(ctx, token, other)
	assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)

	token, err = enc.EncodeEncrypted(ctx, []byte("secret"),
		&EncryptingCredentials{Key: randomKey(t, 16), Algorithm: jwe.A128KW, Encryption: jwe.A128GCM}, nil)
	require.NoError(t, err)
	_, err = dec.Decode(ctx, token, randomKey(t, 16))
	assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)

	_, err = dec.Decode(ctx, token, randomKey(t, 32))
	assert.ErrorIs(t, err, secret.ErrInvalidKeySize)

	_, err = dec.Decode(ctx, token, other)
	assert.ErrorIs(t, err, secret.ErrInvalidKeyType)
}

func TestMalformedTokens(t *testing.T) {
	ctx := context.Background()
	_, dec := codec(t, nil)
	key := randomKey(t, 32)
	alg := header.EncodeSegment([]byte(`{"alg":"HS256"}`))

	tests := map[string]string{
		"empty":           "",
		"two segments":    alg + ".e30",
		"four segments":   alg + ".e30.e30.e30",
		"six segments":    alg + ".a.b.c.d.e",
		"bad header b64":  "!!!.e30.",
		"header not obj":  header.EncodeSegment([]byte(`[1]`)) + ".e30.",
		"missing alg":     header.EncodeSegment([]byte(`{"typ":"JWT"}`)) + ".e30.",
		"bad payload":     alg + ".***.",
		"bad signature":   alg + ".e30.***",
		"padded payload":  alg + ".e30=.",
		"jws with zip":    header.EncodeSegment([]byte(`{"alg":"HS256","zip":"DEF"}`)) + ".e30.",
		"jwe missing enc": header.EncodeSegment([]byte(`{"alg":"dir"}`)) + "....",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			tok, err := dec.Decode(ctx, token, key)
			assert.ErrorIs(t, err, jwa.ErrMalformedToken)
			assert.Nil(t, tok)
		})
	}
}

func TestUnsupportedAlgorithms(t *testing.T) {
	ctx := context.Background()
	enc, dec := codec(t, nil)
	key := randomKey(t, 32)

	_, err := enc.EncodeSigned(ctx, nil, &SigningCredentials{Key: key, Algorithm: "HS1"}, nil)
	assert.ErrorIs(t, err, jwa.ErrUnsupportedAlgorithm)

	_, err = enc.EncodeEncrypted(ctx, nil, &EncryptingCredentials{Key: key, Algorithm: jwe.A256KW, Encryption: "A256CTR"}, nil)
	assert.ErrorIs(t, err, jwa.ErrUnsupportedAlgorithm)

	_, err = enc.EncodeEncrypted(ctx, nil, &EncryptingCredentials{Key: key, Algorithm: jwe.A256KW, Compression: "LZW"}, nil)
	assert.ErrorIs(t, err, jwa.ErrUnsupportedAlgorithm)

	// A key management code is not a signature code.
	_, err = enc.EncodeSigned(ctx, nil, &SigningCredentials{Key: key, Algorithm: jwe.A256KW}, nil)
	assert.ErrorIs(t, err, jwa.ErrUnsupportedAlgorithm)

	for name, h := range map[string]string{
		"unknown alg": `{"alg":"HS1"}`,
		"unknown enc": `{"alg":"dir","enc":"A256CTR"}`,
		"unknown zip": `{"alg":"dir","enc":"A256GCM","zip":"LZW"}`,
		"zip none":    `{"alg":"dir","enc":"A256GCM","zip":"none"}`,
	} {
		t.Run(name, func(t *testing.T) {
			segments := 3
			if strings.Contains(h, "enc") {
				segments = 5
			}
			token := header.EncodeSegment([]byte(h)) + strings.Repeat(".", segments-1)
			_, err := dec.Decode(ctx, token, key)
			assert.ErrorIs(t, err, jwa.ErrUnsupportedAlgorithm)
		})
	}

	_, err = dec.Decode(ctx, header.EncodeSegment([]byte(`{"alg":"HS256","crit":["exp"],"exp":1}`))+"..", key)
	assert.ErrorIs(t, err, ErrUnsupportedCritical)
}

func TestUnsecured(t *testing.T) {
	ctx := context.Background()
	enc, dec := codec(t, nil)

	token, err := enc.EncodeSigned(ctx, []byte("plain"), &SigningCredentials{Algorithm: jws.None}, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(token, "."))

	_, err = dec.Decode(ctx, token, nil)
	assert.ErrorIs(t, err, ErrUnsecuredNotAllowed)

	permissive, err := NewDecoder(&Config{AllowUnsecured: true})
	require.NoError(t, err)
	tok, err := permissive.Decode(ctx, token, nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(tok.Payload))

	// A signature on a "none" token is never accepted.
	_, err = permissive.Decode(ctx, token+"c2ln", nil)
	assert.ErrorIs(t, err, jwa.ErrIntegrityCheckFailed)

	// Signing algorithms still require a key.
	_, err = enc.EncodeSigned(ctx, nil, &SigningCredentials{Algorithm: jws.HS256}, nil)
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestAllowedAlgorithms(t *testing.T) {
	ctx := context.Background()
	enc, _ := codec(t, nil)
	dec, err := NewDecoder(&Config{AllowedAlgorithms: []string{jws.HS512, jwe.A256KW, jwe.A256GCM}})
	require.NoError(t, err)

	hs256 := randomKey(t, 64)
	token, err := enc.EncodeSigned(ctx, nil, &SigningCredentials{Key: hs256, Algorithm: jws.HS256}, nil)
	require.NoError(t, err)
	_, err = dec.Decode(ctx, token, hs256)
	assert.ErrorIs(t, err, ErrAlgorithmNotAllowed)

	token, err = enc.EncodeSigned(ctx, nil, &SigningCredentials{Key: hs256, Algorithm: jws.HS512}, nil)
	require.NoError(t, err)
	_, err = dec.Decode(ctx, token, hs256)
	assert.NoError(t, err)

	kek := randomKey(t, 32)
	token, err = enc.EncodeEncrypted(ctx, nil, &EncryptingCredentials{Key: kek, Algorithm: jwe.A256KW, Encryption: jwe.A128GCM}, nil)
	require.NoError(t, err)
	_, err = dec.Decode(ctx, token, kek)
	assert.ErrorIs(t, err, ErrAlgorithmNotAllowed)
}

func TestDecodeWithResolver(t *testing.T) {
	ctx := context.Background()
	enc, dec := codec(t, nil)
	keys := map[string]secret.SecretKey{
		"a": randomKey(t, 32),
		"b": randomKey(t, 32),
	}
	resolve := func(h *header.Header) (secret.SecretKey, error) {
		k, ok := keys[h.KeyID()]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return k, nil
	}

	for kid, key := range keys {
		token, err := enc.EncodeEncrypted(ctx, []byte(kid),
			&EncryptingCredentials{Key: key, Algorithm: jwe.Direct, Encryption: jwe.A256GCM, KeyID: kid}, nil)
		require.NoError(t, err)
		tok, err := dec.DecodeWithResolver(ctx, token, resolve)
		require.NoError(t, err)
		assert.Equal(t, kid, string(tok.Payload))
	}

	token, err := enc.EncodeEncrypted(ctx, nil,
		&EncryptingCredentials{Key: keys["a"], Algorithm: jwe.Direct, Encryption: jwe.A256GCM, KeyID: "c"}, nil)
	require.NoError(t, err)
	_, err = dec.DecodeWithResolver(ctx, token, resolve)
	assert.ErrorContains(t, err, "unknown kid")

	_, err = dec.DecodeWithResolver(ctx, token, nil)
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = dec.Decode(ctx, token, nil)
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestJSONPayloads(t *testing.T) {
	ctx := context.Background()
	enc, dec := codec(t, nil)
	key := randomKey(t, 32)

	type claims struct {
		Subject string `json:"sub"`
		Admin   bool   `json:"admin"`
	}
	token, err := enc.EncodeSignedJSON(ctx, claims{Subject: "alice", Admin: true},
		&SigningCredentials{Key: key, Algorithm: jws.HS256}, nil)
	require.NoError(t, err)

	var got claims
	h, err := dec.DecodeJSON(ctx, token, key, &got)
	require.NoError(t, err)
	assert.Equal(t, claims{Subject: "alice", Admin: true}, got)
	assert.Equal(t, jws.HS256, h.Algorithm())

	token, err = enc.EncodeEncryptedJSON(ctx, map[string]int{"n": 7},
		&EncryptingCredentials{Key: key, Algorithm: jwe.Direct, Encryption: jwe.A256GCM}, nil)
	require.NoError(t, err)
	var m map[string]int
	_, err = dec.DecodeJSON(ctx, token, key, &m)
	require.NoError(t, err)
	assert.Equal(t, 7, m["n"])

	_, err = enc.EncodeSignedJSON(ctx, func() {}, &SigningCredentials{Key: key, Algorithm: jws.HS256}, nil)
	assert.Error(t, err)
}

func TestExtraHeaders(t *testing.T) {
	ctx := context.Background()
	enc, dec := codec(t, testConfig(t))
	password := symmetric(t, []byte("correct horse battery staple"))

	extra := header.New()
	extra.Set(header.ContentType, "JWT")
	extra.Set(header.PBES2Count, 1500)
	token, err := enc.EncodeEncrypted(ctx, []byte("x"),
		&EncryptingCredentials{Key: password, Algorithm: jwe.PBES2HS256A128KW, Encryption: jwe.A128GCM}, extra)
	require.NoError(t, err)

	h, err := ParseHeader(token)
	require.NoError(t, err)
	count, _, err := h.GetInt(header.PBES2Count)
	require.NoError(t, err)
	assert.Equal(t, 1500, count)
	assert.Equal(t, []string{header.Algorithm, header.ContentType, header.PBES2Count, header.Encryption, header.PBES2SaltInput}, h.Names())

	_, err = dec.Decode(ctx, token, password)
	require.NoError(t, err)

	for _, name := range []string{header.Algorithm, header.Encryption, header.Compression, header.EphemeralPublicKey, header.Critical} {
		bad := header.New()
		bad.Set(name, "x")
		_, err = enc.EncodeEncrypted(ctx, nil,
			&EncryptingCredentials{Key: password, Algorithm: jwe.PBES2HS256A128KW, Encryption: jwe.A128GCM}, bad)
		assert.ErrorIs(t, err, header.ErrInvalidParameter, name)
	}
}

func TestDefaultContentEncryption(t *testing.T) {
	ctx := context.Background()
	enc, dec := codec(t, nil)
	assert.Equal(t, aead.SelectOptimal(false), enc.DefaultContentEncryption())

	key := randomKey(t, 32)
	token, err := enc.EncodeEncrypted(ctx, nil, &EncryptingCredentials{Key: key, Algorithm: jwe.A256KW}, nil)
	require.NoError(t, err)
	tok, err := dec.Decode(ctx, token, key)
	require.NoError(t, err)
	assert.Equal(t, enc.DefaultContentEncryption(), tok.Header.Encryption())

	fixed, err := NewEncoder(&Config{DefaultContentEncryption: jwe.A128CBCHS256})
	require.NoError(t, err)
	assert.Equal(t, jwe.A128CBCHS256, fixed.DefaultContentEncryption())

	_, err = NewEncoder(&Config{DefaultContentEncryption: "A128CTR"})
	assert.ErrorIs(t, err, jwa.ErrUnsupportedAlgorithm)
}

func TestIllegalContentKeySize(t *testing.T) {
	ctx := context.Background()
	enc, _ := codec(t, nil)

	// "dir" with a 128 bit key cannot feed A256GCM.
	_, err := enc.EncodeEncrypted(ctx, nil,
		&EncryptingCredentials{Key: randomKey(t, 16), Algorithm: jwe.Direct, Encryption: jwe.A256GCM}, nil)
	assert.ErrorIs(t, err, secret.ErrInvalidKeySize)

	_, err = enc.EncodeEncrypted(ctx, nil,
		&EncryptingCredentials{Key: randomKey(t, 20), Algorithm: jwe.A128KW, Encryption: jwe.A128GCM}, nil)
	assert.ErrorIs(t, err, secret.ErrInvalidKeySize)
}

func TestUsageGuard(t *testing.T) {
	ctx := context.Background()
	enc, _ := codec(t, nil)
	key := randomKey(t, 32)
	creds := &EncryptingCredentials{
		Key: key, Algorithm: jwe.Direct, Encryption: jwe.A256GCM,
		Usage: aead.NewUsageGuard(10),
	}

	_, err := enc.EncodeEncrypted(ctx, []byte("12345678"), creds, nil)
	require.NoError(t, err)
	_, err = enc.EncodeEncrypted(ctx, []byte("12345678"), creds, nil)
	assert.ErrorIs(t, err, aead.ErrUsageLimitExceeded)
	assert.Equal(t, int64(8), creds.Usage.BytesEncrypted())
	assert.Equal(t, 1, creds.Usage.NonceCount())
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	enc, dec := codec(t, nil)
	key := randomKey(t, 32)

	_, err := enc.EncodeSigned(ctx, nil, &SigningCredentials{Key: key, Algorithm: jws.HS256}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = enc.EncodeEncrypted(ctx, nil, &EncryptingCredentials{Key: key, Algorithm: jwe.Direct}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = dec.Decode(ctx, "a.b.c", key)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDisposedKey(t *testing.T) {
	ctx := context.Background()
	enc, _ := codec(t, nil)
	key, err := secret.GenerateSymmetricKey(nil, 256)
	require.NoError(t, err)
	key.Dispose()

	_, err = enc.EncodeSigned(ctx, nil, &SigningCredentials{Key: key, Algorithm: jws.HS256}, nil)
	assert.ErrorIs(t, err, secret.ErrKeyDisposed)
}

func TestConcurrentUse(t *testing.T) {
	ctx := context.Background()
	enc, dec := codec(t, testConfig(t))
	key := randomKey(t, 32)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			creds := &EncryptingCredentials{Key: key, Algorithm: jwe.A256KW, Encryption: jwe.A256GCM}
			if i%2 == 0 {
				creds.Compression = zip.Deflate
			}
			token, err := enc.EncodeEncrypted(ctx, []byte("payload"), creds, nil)
			if err != nil {
				errs <- err
				return
			}
			tok, err := dec.Decode(ctx, token, key)
			if err != nil {
				errs <- err
				return
			}
			if string(tok.Payload) != "payload" {
				errs <- errors.New("payload mismatch")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Same(t, r, DefaultRegistry())
	assert.Len(t, r.Codes(jwa.KindSignature), 13)
	assert.Len(t, r.Codes(jwa.KindKeyManagement), 13)
	assert.Len(t, r.Codes(jwa.KindContentEncryption), 6)
	assert.Len(t, r.Codes(jwa.KindCompression), 2)

	enc, err := NewEncoder(nil)
	require.NoError(t, err)
	assert.Same(t, r, enc.Registry())

	custom, err := NewEncoder(&Config{PBES2Iterations: 2000})
	require.NoError(t, err)
	assert.NotSame(t, r, custom.Registry())
}
