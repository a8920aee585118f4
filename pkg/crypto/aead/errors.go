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

package aead

import "errors"

var (
	// ErrAuthenticationFailed is returned when an authentication tag does not
	// verify. No plaintext is returned with it.
	ErrAuthenticationFailed = errors.New("aead: message authentication failed")

	// ErrInvalidKeySize is returned when a content key has the wrong length
	// for the cipher.
	ErrInvalidKeySize = errors.New("aead: invalid key size")

	// ErrInvalidNonce is returned when an IV has the wrong length.
	ErrInvalidNonce = errors.New("aead: invalid nonce size")

	// ErrInvalidCiphertext is returned for ciphertext that cannot be
	// decrypted, such as CBC input that is not block aligned.
	ErrInvalidCiphertext = errors.New("aead: invalid ciphertext")

	// ErrNonceReuse is returned when a nonce is presented twice to the same
	// UsageGuard. Encryption must be refused.
	ErrNonceReuse = errors.New("aead: nonce reuse detected")

	// ErrUsageLimitExceeded is returned when a key has encrypted more data
	// than its UsageGuard allows.
	ErrUsageLimitExceeded = errors.New("aead: key usage limit exceeded")
)
