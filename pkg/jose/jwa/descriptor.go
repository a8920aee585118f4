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
	"slices"

	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// Descriptor implements Algorithm for embedding in concrete algorithms.
type Descriptor struct {
	code    string
	kind    Kind
	keyType secret.KeyType
	sizes   []secret.KeySizes
}

// NewDescriptor returns a descriptor for code.
func NewDescriptor(code string, kind Kind, keyType secret.KeyType, sizes ...secret.KeySizes) Descriptor {
	return Descriptor{code: code, kind: kind, keyType: keyType, sizes: sizes}
}

// Code returns the algorithm code.
func (d Descriptor) Code() string { return d.code }

// Kind returns the algorithm kind.
func (d Descriptor) Kind() Kind { return d.kind }

// KeyType returns the accepted key variant.
func (d Descriptor) KeyType() secret.KeyType { return d.keyType }

// KeyBitSizes returns a copy of the legal key sizes.
func (d Descriptor) KeyBitSizes() []secret.KeySizes { return slices.Clone(d.sizes) }

// String returns the algorithm code.
func (d Descriptor) String() string { return d.code }
