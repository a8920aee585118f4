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

package jwa

import (
	"fmt"
	"slices"
)

// DataSource provides a batch of algorithms to a Registry.
type DataSource interface {
	Algorithms() []Algorithm
}

// DataSourceFunc adapts a function to a DataSource.
type DataSourceFunc func() []Algorithm

// Algorithms calls f.
func (f DataSourceFunc) Algorithms() []Algorithm { return f() }

// Algorithms returns a DataSource yielding algs.
func Algorithms(algs ...Algorithm) DataSource {
	return DataSourceFunc(func() []Algorithm { return algs })
}

type entry struct {
	kind Kind
	code string
}

// Registry resolves algorithm codes. Codes are unique within a kind: the
// signature "none" and the compression "none" are distinct entries. A
// Registry is immutable and safe for concurrent use.
type Registry struct {
	algorithms map[entry]Algorithm
}

// NewRegistry flattens sources into a single lookup table.
func NewRegistry(sources ...DataSource) (*Registry, error) {
	r := &Registry{algorithms: make(map[entry]Algorithm)}
	for _, src := range sources {
		if src == nil {
			continue
		}
		for _, alg := range src.Algorithms() {
			if alg == nil {
				continue
			}
			e := entry{kind: alg.Kind(), code: alg.Code()}
			if _, exists := r.algorithms[e]; exists {
				return nil, fmt.Errorf("%w: %s %q", ErrDuplicateAlgorithm, e.kind, e.code)
			}
			r.algorithms[e] = alg
		}
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error. It is intended for
// package-level registries built from static sources.
func MustRegistry(sources ...DataSource) *Registry {
	r, err := NewRegistry(sources...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the algorithm registered for kind and code.
func (r *Registry) Lookup(kind Kind, code string) (Algorithm, error) {
	alg, ok := r.algorithms[entry{kind: kind, code: code}]
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrUnsupportedAlgorithm, kind, code)
	}
	return alg, nil
}

// Signature returns a signature algorithm by code.
func (r *Registry) Signature(code string) (SignatureAlgorithm, error) {
	return lookup[SignatureAlgorithm](r, KindSignature, code)
}

// KeyManagement returns a key management algorithm by code.
func (r *Registry) KeyManagement(code string) (KeyManagementAlgorithm, error) {
	return lookup[KeyManagementAlgorithm](r, KindKeyManagement, code)
}

// ContentEncryption returns a content encryption algorithm by code.
func (r *Registry) ContentEncryption(code string) (ContentEncryptionAlgorithm, error) {
	return lookup[ContentEncryptionAlgorithm](r, KindContentEncryption, code)
}

// Compression returns a compression algorithm by code.
func (r *Registry) Compression(code string) (CompressionAlgorithm, error) {
	return lookup[CompressionAlgorithm](r, KindCompression, code)
}

func lookup[T Algorithm](r *Registry, kind Kind, code string) (T, error) {
	var zero T
	alg, err := r.Lookup(kind, code)
	if err != nil {
		return zero, err
	}
	typed, ok := alg.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s %q is %T", ErrUnsupportedAlgorithm, kind, code, alg)
	}
	return typed, nil
}

// Codes returns the registered codes of kind, sorted.
func (r *Registry) Codes(kind Kind) []string {
	var codes []string
	for e := range r.algorithms {
		if e.kind == kind {
			codes = append(codes, e.code)
		}
	}
	slices.Sort(codes)
	return codes
}

// Len returns the number of registered algorithms.
func (r *Registry) Len() int {
	return len(r.algorithms)
}
