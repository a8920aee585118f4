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

// Package password holds passwords in pinned memory and generates random
// passwords used as PBES2 key material.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/memory"
)

const (
	// DefaultLength is the length of generated passwords.
	DefaultLength = 32

	// MinLength is the shortest password Generate will produce.
	MinLength = 8
)

// alphabet is printable ASCII without quote and backslash characters, so a
// generated password is its own UTF-8 encoding and is safe in shell and JSON.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!#$%&()*+,-./:;<=>?@[]^_{|}~"

var (
	// ErrEmptyPassword is returned when an empty password is provided.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrPasswordZeroed is returned when the password has been zeroed.
	ErrPasswordZeroed = errors.New("password has been zeroed")

	// ErrTooShort is returned when Generate is asked for fewer than
	// MinLength characters.
	ErrTooShort = errors.New("password too short")
)

// Password is a UTF-8 password stored in a pinned buffer.
type Password struct {
	buf *memory.SecureBuffer
}

// New copies raw into a buffer rented from pool. A nil pool uses
// memory.Shared.
func New(pool *memory.Pool, raw []byte) (*Password, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyPassword
	}
	if pool == nil {
		pool = memory.Shared()
	}
	buf, err := pool.Rent(len(raw))
	if err != nil {
		return nil, err
	}
	copy(buf.Bytes(), raw)
	return &Password{buf: buf}, nil
}

// NewFromString creates a password from s.
func NewFromString(pool *memory.Pool, s string) (*Password, error) {
	return New(pool, []byte(s))
}

// Generate creates a random password of length characters drawn uniformly
// from a printable ASCII alphabet.
func Generate(pool *memory.Pool, length int) (*Password, error) {
	if length < MinLength {
		return nil, fmt.Errorf("%w: %d < %d", ErrTooShort, length, MinLength)
	}
	if pool == nil {
		pool = memory.Shared()
	}
	buf, err := pool.Rent(length)
	if err != nil {
		return nil, err
	}
	if err := fill(buf.Bytes()); err != nil {
		buf.Dispose()
		return nil, err
	}
	return &Password{buf: buf}, nil
}

// fill writes random alphabet characters into dst using rejection sampling
// so every character is equally likely.
func fill(dst []byte) error {
	const limit = 256 - 256%len(alphabet)
	var scratch [64]byte
	defer clear(scratch[:])

	for i := 0; i < len(dst); {
		if _, err := rand.Read(scratch[:]); err != nil {
			return fmt.Errorf("password: read random: %w", err)
		}
		for _, b := range scratch {
			if int(b) >= limit {
				continue
			}
			dst[i] = alphabet[int(b)%len(alphabet)]
			i++
			if i == len(dst) {
				break
			}
		}
	}
	return nil
}

// Bytes returns a borrowed view of the password, or nil once cleared.
func (p *Password) Bytes() []byte {
	if p.buf == nil {
		return nil
	}
	return p.buf.Bytes()
}

// String returns the password as a string. The copy cannot be zeroed.
func (p *Password) String() (string, error) {
	b := p.Bytes()
	if b == nil {
		return "", ErrPasswordZeroed
	}
	return string(b), nil
}

// Len returns the password length in bytes.
func (p *Password) Len() int {
	return len(p.Bytes())
}

// Release transfers the underlying buffer to the caller, who must dispose
// it. The password is cleared.
func (p *Password) Release() *memory.SecureBuffer {
	buf := p.buf
	p.buf = nil
	return buf
}

// Clear zeroes the password and returns its buffer to the pool.
func (p *Password) Clear() {
	if p.buf != nil {
		p.buf.Dispose()
		p.buf = nil
	}
}

// Equal compares two passwords in constant time.
func Equal(a, b *Password) (bool, error) {
	ab, bb := a.Bytes(), b.Bytes()
	if ab == nil || bb == nil {
		return false, ErrPasswordZeroed
	}
	return subtle.ConstantTimeCompare(ab, bb) == 1, nil
}
