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

package cli

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-josekit/internal/password"
	"github.com/jeremyhahn/go-josekit/pkg/jose/header"
	"github.com/jeremyhahn/go-josekit/pkg/memory"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

var (
	// ErrKeyRequired is returned when a command needs key material and
	// neither --key nor --password is set.
	ErrKeyRequired = errors.New("a key is required (--key or --password)")

	// ErrKeyConflict is returned when both --key and --password are set.
	ErrKeyConflict = errors.New("--key and --password are mutually exclusive")

	// ErrKeyFormat is returned for key files that are neither PEM nor a
	// base64url symmetric key.
	ErrKeyFormat = errors.New("key file is neither PEM nor base64url")

	// ErrEmptyInput is returned when no payload or token is given.
	ErrEmptyInput = errors.New("empty input")
)

// keyOptions name the key material of a command.
type keyOptions struct {
	// KeyFile is a PEM file or a file holding one base64url symmetric key.
	KeyFile string

	// KeyPassword decrypts an encrypted PKCS#8 key file.
	KeyPassword string

	// Password is used directly as a PBES2 key.
	Password string
}

// addKeyFlags registers the key flags on cmd.
func addKeyFlags(cmd *cobra.Command, opts *keyOptions) {
	cmd.Flags().StringVarP(&opts.KeyFile, "key", "k", "", "key file (PEM or base64url)")
	cmd.Flags().StringVar(&opts.KeyPassword, "key-password", "", "password of an encrypted PEM key file")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password used as a PBES2 key")
}

// isSet reports whether any key material was named.
func (o *keyOptions) isSet() bool {
	return o.KeyFile != "" || o.Password != ""
}

// load reads the named key into pool. The caller disposes the key.
func (o *keyOptions) load(pool *memory.Pool) (secret.SecretKey, error) {
	switch {
	case o.KeyFile != "" && o.Password != "":
		return nil, ErrKeyConflict
	case o.Password != "":
		pw, err := password.NewFromString(pool, o.Password)
		if err != nil {
			return nil, err
		}
		return secret.NewSymmetricKeyFromBuffer(pw.Release())
	case o.KeyFile == "":
		return nil, ErrKeyRequired
	}

	data, err := os.ReadFile(o.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	defer clear(data)

	var pemPassword []byte
	if o.KeyPassword != "" {
		pemPassword = []byte(o.KeyPassword)
	}
	return parseKey(pool, data, pemPassword)
}

// parseKey decodes PEM key material, or a single base64url line as a
// symmetric key.
func parseKey(pool *memory.Pool, data, pemPassword []byte) (secret.SecretKey, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("-----BEGIN ")) {
		return secret.ParsePEM(trimmed, pemPassword)
	}

	raw := make([]byte, base64.RawURLEncoding.DecodedLen(len(trimmed)))
	defer clear(raw)
	n, err := base64.RawURLEncoding.Decode(raw, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}
	if n == 0 {
		return nil, ErrKeyFormat
	}
	return secret.NewSymmetricKey(pool, raw[:n])
}

// readPayload returns the literal argument, the contents of file, or stdin
// when neither is given. A file of "-" also reads stdin.
func readPayload(args []string, file string, stdin io.Reader) ([]byte, error) {
	switch {
	case len(args) > 0:
		return []byte(args[0]), nil
	case file != "" && file != "-":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		return data, nil
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
}

// readToken reads a compact token the way readPayload reads payloads and
// trims surrounding whitespace.
func readToken(args []string, file string, stdin io.Reader) (string, error) {
	data, err := readPayload(args, file, stdin)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrEmptyInput
	}
	return token, nil
}

// extraHeader builds the caller supplied header parameters, or nil when
// there are none.
func extraHeader(typ, cty string) *header.Header {
	if typ == "" && cty == "" {
		return nil
	}
	h := header.New()
	if typ != "" {
		h.Set(header.Type, typ)
	}
	if cty != "" {
		h.Set(header.ContentType, cty)
	}
	return h
}
