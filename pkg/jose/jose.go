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

// Package jose encodes and decodes compact JWS (RFC 7515) and JWE (RFC 7516)
// tokens.
//
// An Encoder resolves the algorithms named by the caller's credentials from a
// jwa.Registry, builds the protected header, produces or wraps the content
// key, optionally compresses, then signs or encrypts and serializes. A Decoder
// splits the token, resolves the algorithms from the decoded header, unwraps
// or derives the content key and verifies or decrypts. Decode is fail closed:
// a signature or tag mismatch yields jwa.ErrIntegrityCheckFailed and no
// payload.
//
// Content keys and derived keys live in buffers rented from a memory.Pool
// and are zeroed before each call returns.
//
// Example:
//
//	key, _ := secret.GenerateSymmetricKey(nil, 256)
//	defer key.Dispose()
//
//	enc, _ := jose.NewEncoder(nil)
//	token, _ := enc.EncodeSigned(ctx, []byte("hello"), &jose.SigningCredentials{Key: key, Algorithm: jws.HS256}, nil)
//
//	dec, _ := jose.NewDecoder(nil)
//	tok, err := dec.Decode(ctx, token, key)
package jose

import (
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jeremyhahn/go-josekit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-josekit/pkg/crypto/aead"
	"github.com/jeremyhahn/go-josekit/pkg/jose/header"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwe"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jws"
	"github.com/jeremyhahn/go-josekit/pkg/jose/zip"
	"github.com/jeremyhahn/go-josekit/pkg/memory"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// TracerName is the instrumentation scope of the engine's spans.
const TracerName = "github.com/jeremyhahn/go-josekit/pkg/jose"

var (
	// ErrUnsecuredNotAllowed is returned when decoding an "alg": "none"
	// token without Config.AllowUnsecured.
	ErrUnsecuredNotAllowed = errors.New("jose: unsecured token not allowed")

	// ErrAlgorithmNotAllowed is returned when a token names an algorithm
	// outside Config.AllowedAlgorithms.
	ErrAlgorithmNotAllowed = errors.New("jose: algorithm not allowed")

	// ErrMissingKey is returned when no key is supplied or resolved.
	ErrMissingKey = errors.New("jose: missing key")

	// ErrUnsupportedCritical is returned for a "crit" header this engine
	// does not understand.
	ErrUnsupportedCritical = errors.New("jose: unsupported critical header")
)

// Config configures an Encoder or Decoder. The zero value is usable.
type Config struct {
	// Registry resolves algorithm codes. Nil builds one from Sources.
	Registry *jwa.Registry

	// Pool supplies content key buffers. Nil uses memory.Shared.
	Pool *memory.Pool

	// Logger receives operation logs. Nil discards.
	Logger logger.Logger

	// TracerProvider creates spans. Nil uses the global provider.
	TracerProvider trace.TracerProvider

	// PBES2Iterations is the "p2c" written when the header has none.
	PBES2Iterations int

	// MaxPBES2Iterations rejects tokens with a larger "p2c".
	MaxPBES2Iterations int

	// MaxDecompressedSize caps inflated JWE plaintext.
	MaxDecompressedSize int

	// DefaultContentEncryption is used when EncryptingCredentials leave
	// Encryption empty. Empty selects by CPU features.
	DefaultContentEncryption string

	// AllowUnsecured lets the Decoder accept "alg": "none".
	AllowUnsecured bool

	// AllowedAlgorithms restricts the "alg" and "enc" values the Decoder
	// accepts. Empty allows every registered algorithm.
	AllowedAlgorithms []string
}

// Sources returns every built-in data source configured from cfg.
func Sources(cfg *Config) []jwa.DataSource {
	if cfg == nil {
		cfg = &Config{}
	}
	opts := &jwe.Options{
		Pool:               cfg.Pool,
		PBES2Iterations:    cfg.PBES2Iterations,
		MaxPBES2Iterations: cfg.MaxPBES2Iterations,
	}
	sources := jws.Sources()
	sources = append(sources, jwe.Sources(opts)...)
	return append(sources, zip.Source(cfg.MaxDecompressedSize))
}

// NewRegistry builds a registry of every built-in algorithm.
func NewRegistry(cfg *Config) (*jwa.Registry, error) {
	return jwa.NewRegistry(Sources(cfg)...)
}

var defaultRegistry = sync.OnceValue(func() *jwa.Registry {
	return jwa.MustRegistry(Sources(nil)...)
})

// DefaultRegistry returns the shared registry of built-in algorithms with
// default options.
func DefaultRegistry() *jwa.Registry {
	return defaultRegistry()
}

// SigningCredentials selects the key and algorithm of a JWS.
type SigningCredentials struct {
	Key       secret.SecretKey
	Algorithm string

	// KeyID is written to "kid" when set.
	KeyID string
}

// EncryptingCredentials selects the key and algorithms of a JWE.
type EncryptingCredentials struct {
	Key secret.SecretKey

	// Algorithm is the key management "alg".
	Algorithm string

	// Encryption is the content encryption "enc". Empty uses the
	// Config default.
	Encryption string

	// Compression is the "zip" algorithm. Empty or zip.None compresses
	// nothing and writes no "zip".
	Compression string

	// KeyID is written to "kid" when set.
	KeyID string

	// Usage, when set, bounds how often a long-lived content key encrypts.
	// Use it with "dir" keys shared across tokens.
	Usage *aead.UsageGuard
}

// KeyResolver returns the key for a decoded protected header, typically by
// "kid". It is the seam to external key storage.
type KeyResolver func(h *header.Header) (secret.SecretKey, error)

// StaticKey returns a resolver that always yields key.
func StaticKey(key secret.SecretKey) KeyResolver {
	return func(*header.Header) (secret.SecretKey, error) { return key, nil }
}

// engine is the state shared by Encoder and Decoder.
type engine struct {
	registry *jwa.Registry
	pool     *memory.Pool
	logger   logger.Logger
	tracer   trace.Tracer
}

func newEngine(cfg *Config) (engine, error) {
	registry := cfg.Registry
	if registry == nil {
		if isDefault(cfg) {
			registry = DefaultRegistry()
		} else {
			r, err := NewRegistry(cfg)
			if err != nil {
				return engine{}, fmt.Errorf("jose: build registry: %w", err)
			}
			registry = r
		}
	}
	pool := cfg.Pool
	if pool == nil {
		pool = memory.Shared()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return engine{
		registry: registry,
		pool:     pool,
		logger:   logger.OrDiscard(cfg.Logger),
		tracer:   tp.Tracer(TracerName),
	}, nil
}

// isDefault reports whether cfg leaves every registry option at its default.
func isDefault(cfg *Config) bool {
	return cfg.Pool == nil && cfg.PBES2Iterations == 0 &&
		cfg.MaxPBES2Iterations == 0 && cfg.MaxDecompressedSize == 0
}

// Registry returns the registry algorithms are resolved from.
func (e *engine) Registry() *jwa.Registry { return e.registry }
