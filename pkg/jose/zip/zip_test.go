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

package zip

import (
	"bytes"
	"compress/flate"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
)

func TestDeflateRoundTrip(t *testing.T) {
	d := NewDeflate(0)
	assert.Equal(t, Deflate, d.Code())
	assert.Equal(t, jwa.KindCompression, d.Kind())
	assert.Equal(t, DefaultMaxDecompressedSize, d.MaxDecompressedSize())

	for _, in := range [][]byte{
		nil,
		[]byte("a"),
		[]byte(strings.Repeat("You can trust us to stick with you through thick and thin", 64)),
	} {
		c, err := d.Compress(in)
		require.NoError(t, err)
		out, err := d.Decompress(c)
		require.NoError(t, err)
		assert.Equal(t, len(in), len(out))
		assert.True(t, bytes.Equal(in, out))
	}
}

func TestDeflateIsRaw(t *testing.T) {
	// Raw DEFLATE has no zlib header (0x78) or gzip magic (0x1f 0x8b).
	c, err := NewDeflate(0).Compress([]byte("hello hello hello"))
	require.NoError(t, err)
	require.NotEmpty(t, c)
	assert.NotEqual(t, byte(0x78), c[0])

	r := flate.NewReader(bytes.NewReader(c))
	defer r.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(r)
	require.NoError(t, err)
	assert.Equal(t, "hello hello hello", out.String())
}

func TestDeflateLimit(t *testing.T) {
	d := NewDeflate(1024)
	bomb, err := NewDeflate(0).Compress(make([]byte, 1<<20))
	require.NoError(t, err)
	assert.Less(t, len(bomb), 4096)

	_, err = d.Decompress(bomb)
	assert.ErrorIs(t, err, ErrDecompressedTooLarge)
	assert.ErrorIs(t, err, jwa.ErrMalformedToken)

	exact, err := d.Compress(make([]byte, 1024))
	require.NoError(t, err)
	out, err := d.Decompress(exact)
	require.NoError(t, err)
	assert.Len(t, out, 1024)
}

func TestDeflateCorrupt(t *testing.T) {
	_, err := NewDeflate(0).Decompress([]byte{0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, jwa.ErrMalformedToken)
}

func TestNone(t *testing.T) {
	n := NewNone()
	assert.Equal(t, None, n.Code())
	in := []byte("payload")
	c, err := n.Compress(in)
	require.NoError(t, err)
	assert.Equal(t, in, c)
	d, err := n.Decompress(c)
	require.NoError(t, err)
	assert.Equal(t, in, d)
}

func TestSource(t *testing.T) {
	r, err := jwa.NewRegistry(Source(0))
	require.NoError(t, err)
	assert.Equal(t, []string{Deflate, None}, r.Codes(jwa.KindCompression))
	_, err = r.Compression(Deflate)
	assert.NoError(t, err)
}
