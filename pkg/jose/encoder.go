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
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jeremyhahn/go-josekit/pkg/crypto/aead"
	"github.com/jeremyhahn/go-josekit/pkg/jose/header"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jws"
	"github.com/jeremyhahn/go-josekit/pkg/jose/zip"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// reserved header members are written by the encoder and its algorithms;
// extra headers cannot set them.
var reserved = map[string]bool{
	header.Algorithm:          true,
	header.Encryption:         true,
	header.Compression:        true,
	header.EphemeralPublicKey: true,
	header.Critical:           true,
}

// Encoder produces compact JWS and JWE tokens. It is safe for concurrent use.
type Encoder struct {
	engine
	defaultEnc string
}

// NewEncoder creates an encoder. A nil cfg uses defaults.
func NewEncoder(cfg *Config) (*Encoder, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	e, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	enc := cfg.DefaultContentEncryption
	if enc == "" {
		enc = aead.SelectOptimal(false)
	}
	if _, err := e.registry.ContentEncryption(enc); err != nil {
		return nil, err
	}
	return &Encoder{engine: e, defaultEnc: enc}, nil
}

// DefaultContentEncryption returns the "enc" used when credentials leave it
// empty.
func (e *Encoder) DefaultContentEncryption() string { return e.defaultEnc }

// EncodeSigned returns the compact JWS of payload. extra supplies
// additional protected header members such as "typ" or "cty".
func (e *Encoder) EncodeSigned(ctx context.Context, payload []byte, creds *SigningCredentials, extra *header.Header) (token string, err error) {
	ctx, op := e.begin(ctx, "sign", attribute.Int(AttrPayloadSize, len(payload)))
	defer func() { err = op.end(err) }()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if creds == nil {
		return "", fmt.Errorf("%w: nil signing credentials", ErrMissingKey)
	}
	op.annotate(attribute.String(AttrAlgorithm, creds.Algorithm))
	if creds.KeyID != "" {
		op.annotate(attribute.String(AttrKeyID, creds.KeyID))
	}
	alg, err := e.registry.Signature(creds.Algorithm)
	if err != nil {
		return "", err
	}
	if creds.Key == nil && alg.Code() != jws.None {
		return "", ErrMissingKey
	}

	h, err := e.protected(alg.Code(), creds.KeyID, extra)
	if err != nil {
		return "", err
	}
	encoded, err := h.Encode()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.Grow(len(encoded) + 1 + len(payload)*4/3 + 4 + 2*alg.SignatureSizeBytes(keyBits(creds.Key)))
	sb.WriteString(encoded)
	sb.WriteByte('.')
	sb.WriteString(header.EncodeSegment(payload))

	sig, err := jws.Sign(alg, creds.Key, []byte(sb.String()))
	if err != nil {
		return "", err
	}
	sb.WriteByte('.')
	sb.WriteString(header.EncodeSegment(sig))

	token = sb.String()
	op.annotate(attribute.Int(AttrTokenSize, len(token)))
	return token, nil
}

// EncodeSignedJSON marshals v to JSON and signs it.
func (e *Encoder) EncodeSignedJSON(ctx context.Context, v any, creds *SigningCredentials, extra *header.Header) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("jose: marshal payload: %w", err)
	}
	return e.EncodeSigned(ctx, payload, creds, extra)
}

// EncodeEncrypted returns the compact JWE of payload. extra supplies
// additional protected header members; "apu", "apv", "p2s" and "p2c" set
// there feed the key management algorithm.
func (e *Encoder) EncodeEncrypted(ctx context.Context, payload []byte, creds *EncryptingCredentials, extra *header.Header) (token string, err error) {
	ctx, op := e.begin(ctx, "encrypt", attribute.Int(AttrPayloadSize, len(payload)))
	defer func() { err = op.end(err) }()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if creds == nil || creds.Key == nil {
		return "", fmt.Errorf("%w: encrypting credentials need a key", ErrMissingKey)
	}
	encCode := creds.Encryption
	if encCode == "" {
		encCode = e.defaultEnc
	}
	zipCode := creds.Compression
	if zipCode == "" {
		zipCode = zip.None
	}
	op.annotate(
		attribute.String(AttrAlgorithm, creds.Algorithm),
		attribute.String(AttrEncryption, encCode),
		attribute.String(AttrCompression, zipCode),
	)

	km, err := e.registry.KeyManagement(creds.Algorithm)
	if err != nil {
		return "", err
	}
	enc, err := e.registry.ContentEncryption(encCode)
	if err != nil {
		return "", err
	}
	comp, err := e.registry.Compression(zipCode)
	if err != nil {
		return "", err
	}

	cekSize := enc.CEKSizeBytes()
	if !secret.IsLegalSize(cekSize, km.LegalCEKByteSizes(creds.Key.KeySizeBits())) {
		return "", fmt.Errorf("%w: %s cannot carry a %d byte %s key",
			secret.ErrInvalidKeySize, km.Code(), cekSize, enc.Code())
	}

	h, err := e.protected(km.Code(), creds.KeyID, extra)
	if err != nil {
		return "", err
	}
	h.Set(header.Encryption, enc.Code())
	if comp.Code() != zip.None {
		h.Set(header.Compression, comp.Code())
	}

	cek, err := e.pool.Rent(cekSize)
	if err != nil {
		return "", err
	}
	defer cek.Dispose()

	encryptedKey := make([]byte, km.EncryptedCEKSizeBytes(creds.Key.KeySizeBits(), cekSize))
	n, ok, err := km.TryWrapNewKey(creds.Key, h, cek.Bytes(), encryptedKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("jose: %s encrypted key exceeds %d bytes", km.Code(), len(encryptedKey))
	}
	encryptedKey = encryptedKey[:n]

	// The header is final only once the key management algorithm has run.
	encoded, err := h.Encode()
	if err != nil {
		return "", err
	}

	plaintext, err := comp.Compress(payload)
	if err != nil {
		return "", err
	}
	iv := make([]byte, enc.IVSizeBytes())
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("jose: generate iv: %w", err)
	}
	if creds.Usage != nil {
		if err := creds.Usage.Admit(iv, len(plaintext)); err != nil {
			return "", err
		}
	}
	ciphertext, tag, err := enc.Encrypt(cek.Bytes(), iv, plaintext, []byte(encoded))
	if err != nil {
		return "", err
	}

	token = strings.Join([]string{
		encoded,
		header.EncodeSegment(encryptedKey),
		header.EncodeSegment(iv),
		header.EncodeSegment(ciphertext),
		header.EncodeSegment(tag),
	}, ".")
	op.annotate(attribute.Int(AttrTokenSize, len(token)))
	return token, nil
}

// EncodeEncryptedJSON marshals v to JSON and encrypts it.
func (e *Encoder) EncodeEncryptedJSON(ctx context.Context, v any, creds *EncryptingCredentials, extra *header.Header) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("jose: marshal payload: %w", err)
	}
	return e.EncodeEncrypted(ctx, payload, creds, extra)
}

// protected starts a header with "alg", then "kid", then the caller's
// extra members.
func (e *Encoder) protected(alg, kid string, extra *header.Header) (*header.Header, error) {
	h := header.New()
	h.Set(header.Algorithm, alg)
	if kid != "" {
		h.Set(header.KeyID, kid)
	}
	if extra == nil {
		return h, nil
	}
	for _, name := range extra.Names() {
		if reserved[name] {
			return nil, fmt.Errorf("%w: %q cannot be set as an extra header", header.ErrInvalidParameter, name)
		}
		v, _ := extra.Get(name)
		h.Set(name, v)
	}
	return h, nil
}

func keyBits(k secret.SecretKey) int {
	if k == nil {
		return 0
	}
	return k.KeySizeBits()
}
