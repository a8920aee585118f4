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

package jws

import (
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// Unsecured is the "none" algorithm: an empty signature that verifies only
// an empty signature. It ignores the key.
type Unsecured struct {
	jwa.Descriptor
}

// NewUnsecured returns the "none" algorithm.
func NewUnsecured() *Unsecured {
	return &Unsecured{jwa.NewDescriptor(None, jwa.KindSignature, secret.KeyTypeUnknown)}
}

// NoneSource provides "none".
func NoneSource() jwa.DataSource {
	return jwa.Algorithms(NewUnsecured())
}

// SignatureSizeBytes returns zero.
func (*Unsecured) SignatureSizeBytes(int) int { return 0 }

// TrySign writes nothing and always succeeds.
func (*Unsecured) TrySign(secret.SecretKey, []byte, []byte) (int, bool, error) {
	return 0, true, nil
}

// Verify accepts only an empty signature.
func (*Unsecured) Verify(_ secret.SecretKey, _ []byte, signature []byte) (bool, error) {
	return len(signature) == 0, nil
}
