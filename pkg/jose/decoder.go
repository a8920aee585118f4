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
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jeremyhahn/go-josekit/pkg/jose/header"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jws"
	"github.com/jeremyhahn/go-josekit/pkg/jose/zip"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// Segment counts of the compact serializations.
const (
	jwsSegments = 3
	jweSegments = 5
)

// Token is a verified or decrypted token.
type Token struct {
	Header  *header.Header
	Payload []byte

	// Encrypted is true for a JWE, false for a JWS.
	Encrypted bool
}

// Decoder verifies and decrypts compact tokens. It is safe for concurrent
// use.
type Decoder struct {
	engine
	allowUnsecured bool
	allowed        map[string]bool
}

// NewDecoder creates a decoder. A nil cfg uses defaults, which reject
// unsecured tokens.
func NewDecoder(cfg *Config) (*Decoder, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	e, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	d := &Decoder{engine: e, allowUnsecured: cfg.AllowUnsecured}
	if len(cfg.AllowedAlgorithms) > 0 {
		d.allowed = make(map[string]bool, len(cfg.AllowedAlgorithms))
		for _, code := range cfg.AllowedAlgorithms {
			d.allowed[code] = true
		}
	}
	return d, nil
}

// Decode verifies or decrypts token with key.
func (d *Decoder) Decode(ctx context.Context, token string, key secret.SecretKey) (*Token, error) {
	return d.DecodeWithResolver(ctx, token, StaticKey(key))
}

// DecodeJSON decodes token with key and unmarshals the payload into v.
func (d *Decoder) DecodeJSON(ctx context.Context, token string, key secret.SecretKey, v any) (*header.Header, error) {
	tok, err := d.Decode(ctx, token, key)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tok.Payload, v); err != nil {
		return nil, fmt.Errorf("jose: unmarshal payload: %w", err)
	}
	return tok.Header, nil
}

// DecodeWithResolver decodes token, asking resolve for the key once the
// protected header is known.
func (d *Decoder) DecodeWithResolver(ctx context.Context, token string, resolve KeyResolver) (tok *Token, err error) {
	segments := strings.Split(token, ".")
	name := "decode"
	switch len(segments) {
	case jwsSegments:
		name = "verify"
	case jweSegments:
		name = "decrypt"
	}
	ctx, op := d.begin(ctx, name, attribute.Int(AttrTokenSize, len(token)))
	defer func() { err = op.end(err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resolve == nil {
		return nil, ErrMissingKey
	}
	if name == "decode" {
		return nil, fmt.Errorf("%w: %d segments", jwa.ErrMalformedToken, len(segments))
	}

	h, err := ParseHeader(token)
	if err != nil {
		return nil, err
	}
	alg := h.Algorithm()
	op.annotate(attribute.String(AttrAlgorithm, alg))
	if kid := h.KeyID(); kid != "" {
		op.annotate(attribute.String(AttrKeyID, kid))
	}
	if err := d.permit(alg); err != nil {
		return nil, err
	}

	if name == "verify" {
		return d.verify(h, segments, resolve)
	}
	op.annotate(attribute.String(AttrEncryption, h.Encryption()))
	if z := h.Compression(); z != "" {
		op.annotate(attribute.String(AttrCompression, z))
	}
	return d.decrypt(h, segments, resolve)
}

// ParseHeader decodes the protected header of a compact token without
// verifying it.
func ParseHeader(token string) (*header.Header, error) {
	first, _, found := strings.Cut(token, ".")
	if !found {
		return nil, fmt.Errorf("%w: no segments", jwa.ErrMalformedToken)
	}
	h, err := header.Parse(first)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", jwa.ErrMalformedToken, err)
	}
	if h.Algorithm() == "" {
		return nil, fmt.Errorf("%w: missing %q", jwa.ErrMalformedToken, header.Algorithm)
	}
	if h.Has(header.Critical) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCritical, header.Critical)
	}
	return h, nil
}

func (d *Decoder) permit(code string) error {
	if d.allowed != nil && !d.allowed[code] {
		return fmt.Errorf("%w: %q", ErrAlgorithmNotAllowed, code)
	}
	return nil
}

func (d *Decoder) verify(h *header.Header, segments []string, resolve KeyResolver) (*Token, error) {
	alg, err := d.registry.Signature(h.Algorithm())
	if err != nil {
		return nil, err
	}
	if alg.Code() == jws.None && !d.allowUnsecured {
		return nil, ErrUnsecuredNotAllowed
	}
	if h.Has(header.Compression) {
		return nil, fmt.Errorf("%w: %q is not defined for JWS", jwa.ErrMalformedToken, header.Compression)
	}

	payload, err := header.DecodeSegment(segments[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %w", jwa.ErrMalformedToken, err)
	}
	sig, err := header.DecodeSegment(segments[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %w", jwa.ErrMalformedToken, err)
	}

	var key secret.SecretKey
	if alg.Code() != jws.None {
		if key, err = resolveKey(h, resolve); err != nil {
			return nil, err
		}
	}

	valid, err := alg.Verify(key, []byte(segments[0]+"."+segments[1]), sig)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, fmt.Errorf("%w: %s signature", jwa.ErrIntegrityCheckFailed, alg.Code())
	}
	return &Token{Header: h, Payload: payload}, nil
}

func (d *Decoder) decrypt(h *header.Header, segments []string, resolve KeyResolver) (*Token, error) {
	km, err := d.registry.KeyManagement(h.Algorithm())
	if err != nil {
		return nil, err
	}
	encCode, err := h.RequireString(header.Encryption)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", jwa.ErrMalformedToken, err)
	}
	if err := d.permit(encCode); err != nil {
		return nil, err
	}
	enc, err := d.registry.ContentEncryption(encCode)
	if err != nil {
		return nil, err
	}
	comp := jwa.CompressionAlgorithm(zip.NewNone())
	if zipCode := h.Compression(); zipCode != "" {
		if zipCode == zip.None {
			return nil, fmt.Errorf("%w: zip %q", jwa.ErrUnsupportedAlgorithm, zipCode)
		}
		if comp, err = d.registry.Compression(zipCode); err != nil {
			return nil, err
		}
	}

	var parts [4][]byte
	for i, label := range []string{"encrypted key", "iv", "ciphertext", "tag"} {
		if parts[i], err = header.DecodeSegment(segments[i+1]); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", jwa.ErrMalformedToken, label, err)
		}
	}
	encryptedKey, iv, ciphertext, tag := parts[0], parts[1], parts[2], parts[3]

	key, err := resolveKey(h, resolve)
	if err != nil {
		return nil, err
	}

	cek, err := d.pool.Rent(enc.CEKSizeBytes())
	if err != nil {
		return nil, err
	}
	defer cek.Dispose()

	n, ok, err := km.TryUnwrapKey(key, h, encryptedKey, cek.Bytes())
	unwrapFailed := false
	switch {
	case errors.Is(err, jwa.ErrIntegrityCheckFailed), err == nil && (!ok || n != cek.Len()):
		// RFC 7516 section 11.5: continue with a random CEK so a bad key
		// and a bad tag fail the same way.
		unwrapFailed = true
		if _, err := rand.Read(cek.Bytes()); err != nil {
			return nil, fmt.Errorf("jose: generate cek: %w", err)
		}
	case err != nil:
		return nil, err
	}

	plaintext, err := enc.Decrypt(cek.Bytes(), iv, ciphertext, tag, []byte(segments[0]))
	if err != nil {
		return nil, err
	}
	if unwrapFailed {
		clear(plaintext)
		return nil, fmt.Errorf("%w: content key", jwa.ErrIntegrityCheckFailed)
	}

	payload, err := comp.Decompress(plaintext)
	if err != nil {
		return nil, err
	}
	return &Token{Header: h, Payload: payload, Encrypted: true}, nil
}

func resolveKey(h *header.Header, resolve KeyResolver) (secret.SecretKey, error) {
	key, err := resolve(h)
	if err != nil {
		return nil, fmt.Errorf("jose: resolve key: %w", err)
	}
	if key == nil {
		return nil, ErrMissingKey
	}
	return key, nil
}
