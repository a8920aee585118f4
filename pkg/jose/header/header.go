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

// Package header implements the ordered JOSE header.
//
// A Header keeps its members in insertion order so that encoding is
// deterministic and a decoded header re-encodes to the same JSON member
// order. Algorithms mutate the header while encoding (ECDH-ES writes "epk",
// PBES2 writes "p2s" and "p2c") and read it back while decoding.
package header

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Registered header parameter names (RFC 7515 section 4.1, RFC 7516
// section 4.1, RFC 7518 section 4.6.1 and 4.8.1).
const (
	Algorithm           = "alg"
	Encryption          = "enc"
	Compression         = "zip"
	KeyID               = "kid"
	Type                = "typ"
	ContentType         = "cty"
	Critical            = "crit"
	EphemeralPublicKey  = "epk"
	AgreementPartyUInfo = "apu"
	AgreementPartyVInfo = "apv"
	PBES2SaltInput      = "p2s"
	PBES2Count          = "p2c"
)

var (
	// ErrMissingParameter is returned when a required member is absent.
	ErrMissingParameter = errors.New("header: missing parameter")

	// ErrInvalidParameter is returned when a member has the wrong JSON type
	// or encoding.
	ErrInvalidParameter = errors.New("header: invalid parameter")

	// ErrInvalidJSON is returned when a header is not a JSON object or has
	// duplicate members.
	ErrInvalidJSON = errors.New("header: invalid JSON")
)

// Header is an ordered set of JOSE header parameters. The zero value is
// ready to use. A Header is not safe for concurrent mutation.
type Header struct {
	names  []string
	values map[string]any
}

// New returns an empty header.
func New() *Header {
	return &Header{values: make(map[string]any)}
}

// Set stores value under name. A new name is appended; an existing name
// keeps its position.
func (h *Header) Set(name string, value any) {
	if h.values == nil {
		h.values = make(map[string]any)
	}
	if _, ok := h.values[name]; !ok {
		h.names = append(h.names, name)
	}
	h.values[name] = value
}

// Get returns the raw value stored under name.
func (h *Header) Get(name string) (any, bool) {
	v, ok := h.values[name]
	return v, ok
}

// Has reports whether name is present.
func (h *Header) Has(name string) bool {
	_, ok := h.values[name]
	return ok
}

// Delete removes name.
func (h *Header) Delete(name string) {
	if _, ok := h.values[name]; !ok {
		return
	}
	delete(h.values, name)
	h.names = slices.DeleteFunc(h.names, func(n string) bool { return n == name })
}

// Names returns the member names in order.
func (h *Header) Names() []string {
	return slices.Clone(h.names)
}

// Len returns the number of members.
func (h *Header) Len() int {
	return len(h.names)
}

// Clone returns a shallow copy of h.
func (h *Header) Clone() *Header {
	return &Header{names: slices.Clone(h.names), values: maps.Clone(h.values)}
}

// Merge sets every member of other on h, in other's order.
func (h *Header) Merge(other *Header) {
	if other == nil {
		return
	}
	for _, name := range other.names {
		h.Set(name, other.values[name])
	}
}

// GetString returns the string member name. ok is false when the member is
// absent; a present member that is not a string is an error.
func (h *Header) GetString(name string) (value string, ok bool, err error) {
	v, present := h.values[name]
	if !present {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", false, fmt.Errorf("%w: %q is %T, not a string", ErrInvalidParameter, name, v)
	}
	return s, true, nil
}

// RequireString returns the string member name or ErrMissingParameter.
func (h *Header) RequireString(name string) (string, error) {
	s, ok, err := h.GetString(name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingParameter, name)
	}
	return s, nil
}

// GetInt returns an integer member. JSON numbers decode as json.Number or
// float64; both are accepted when they hold an integral value.
func (h *Header) GetInt(name string) (value int, ok bool, err error) {
	v, present := h.values[name]
	if !present {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false, fmt.Errorf("%w: %q is not an integer", ErrInvalidParameter, name)
		}
		return int(i), true, nil
	case float64:
		if n != float64(int(n)) {
			return 0, false, fmt.Errorf("%w: %q is not an integer", ErrInvalidParameter, name)
		}
		return int(n), true, nil
	default:
		return 0, false, fmt.Errorf("%w: %q is %T, not a number", ErrInvalidParameter, name, v)
	}
}

// SetBytes stores b base64url encoded.
func (h *Header) SetBytes(name string, b []byte) {
	h.Set(name, EncodeSegment(b))
}

// GetBytes decodes a base64url string member.
func (h *Header) GetBytes(name string) (value []byte, ok bool, err error) {
	s, ok, err := h.GetString(name)
	if err != nil || !ok {
		return nil, ok, err
	}
	b, err := DecodeSegment(s)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %q: %v", ErrInvalidParameter, name, err)
	}
	return b, true, nil
}

// Decode converts the member name into v by round-tripping it through JSON.
// It is used for structured members such as "epk".
func (h *Header) Decode(name string, v any) error {
	raw, ok := h.values[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrMissingParameter, name)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidParameter, name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidParameter, name, err)
	}
	return nil
}

// Algorithm returns "alg", or an empty string.
func (h *Header) Algorithm() string { return h.str(Algorithm) }

// Encryption returns "enc", or an empty string.
func (h *Header) Encryption() string { return h.str(Encryption) }

// Compression returns "zip", or an empty string.
func (h *Header) Compression() string { return h.str(Compression) }

// KeyID returns "kid", or an empty string.
func (h *Header) KeyID() string { return h.str(KeyID) }

func (h *Header) str(name string) string {
	s, _, _ := h.GetString(name)
	return s
}

// MarshalJSON encodes the members in order.
func (h *Header) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range h.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(h.values[name])
		if err != nil {
			return nil, fmt.Errorf("header: encode %q: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping member order. Duplicate
// member names are rejected. Numbers decode as json.Number.
func (h *Header) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: not an object", ErrInvalidJSON)
	}

	out := New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: member name %v", ErrInvalidJSON, tok)
		}
		if out.Has(name) {
			return fmt.Errorf("%w: duplicate member %q", ErrInvalidJSON, name)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("%w: member %q: %v", ErrInvalidJSON, name, err)
		}
		out.Set(name, value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if _, err := dec.Token(); err == nil {
		return fmt.Errorf("%w: trailing data", ErrInvalidJSON)
	}

	*h = *out
	return nil
}

// Encode returns the base64url encoded JSON of h, the first segment of a
// compact token.
func (h *Header) Encode() (string, error) {
	data, err := h.MarshalJSON()
	if err != nil {
		return "", err
	}
	return EncodeSegment(data), nil
}

// Parse decodes a base64url header segment.
func Parse(segment string) (*Header, error) {
	data, err := DecodeSegment(segment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	h := New()
	if err := h.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return h, nil
}
