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

package header

import (
	"encoding/base64"
	"errors"
	"strings"
)

var segmentEncoding = base64.RawURLEncoding.Strict()

// EncodeSegment base64url encodes b without padding.
func EncodeSegment(b []byte) string {
	return segmentEncoding.EncodeToString(b)
}

// DecodeSegment decodes an unpadded base64url string. Padding, whitespace
// and non-canonical trailing bits are rejected.
func DecodeSegment(s string) ([]byte, error) {
	if strings.ContainsAny(s, "\r\n") {
		return nil, errors.New("illegal line break in base64url data")
	}
	return segmentEncoding.DecodeString(s)
}
