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
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-josekit/pkg/jose"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// encryptOptions holds the encrypt flags.
type encryptOptions struct {
	keyOptions
	Algorithm   string
	Encryption  string
	Compression string
	KeyID       string
	Type        string
	ContentType string
	Input       string
}

var (
	encryptOpts encryptOptions
	decryptOpts decodeOptions
)

// encryptCmd encrypts a payload into a compact JWE
var encryptCmd = &cobra.Command{
	Use:   "encrypt [payload]",
	Short: "Encrypt a payload as a compact JWE",
	Long: `Encrypt a payload and print the compact JWE.

The payload is the argument, the file named by --in, or stdin. For RSA and
EC recipients only the public half of --key is used, so a public key PEM or
certificate is enough.

Examples:
  jose encrypt --alg A256KW --enc A256GCM --key kek.key "hello"
  jose encrypt --alg ECDH-ES+A128KW --key recipient.pub.pem --zip DEF --in doc.json
  jose encrypt --alg PBES2-HS256+A128KW --password 'correct horse' "hello"`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runEncrypt(cmd.Context(), getConfig(), &encryptOpts, args, os.Stdin, os.Stdout); err != nil {
			handleError(err)
		}
	},
}

// decryptCmd decrypts a compact JWE
var decryptCmd = &cobra.Command{
	Use:   "decrypt [token]",
	Short: "Decrypt a compact JWE and print its payload",
	Long: `Decrypt a compact JWE and print its payload. Decryption fails
closed: nothing is printed unless the authentication tag is valid.

The token is the argument, the file named by --in, or stdin.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDecrypt(cmd.Context(), getConfig(), &decryptOpts, args, os.Stdin, os.Stdout); err != nil {
			handleError(err)
		}
	},
}

func init() {
	addKeyFlags(encryptCmd, &encryptOpts.keyOptions)
	encryptCmd.Flags().StringVarP(&encryptOpts.Algorithm, "alg", "a", "", "key management algorithm (e.g. A256KW, ECDH-ES, RSA-OAEP-256)")
	encryptCmd.Flags().StringVarP(&encryptOpts.Encryption, "enc", "e", "", "content encryption (default from config or CPU features)")
	encryptCmd.Flags().StringVar(&encryptOpts.Compression, "zip", "", "compression (DEF)")
	encryptCmd.Flags().StringVar(&encryptOpts.KeyID, "kid", "", "key ID header")
	encryptCmd.Flags().StringVar(&encryptOpts.Type, "typ", "", "type header")
	encryptCmd.Flags().StringVar(&encryptOpts.ContentType, "cty", "", "content type header")
	encryptCmd.Flags().StringVarP(&encryptOpts.Input, "in", "i", "", "read the payload from a file (- for stdin)")
	_ = encryptCmd.MarkFlagRequired("alg")

	addKeyFlags(decryptCmd, &decryptOpts.keyOptions)
	decryptCmd.Flags().StringVarP(&decryptOpts.Input, "in", "i", "", "read the token from a file (- for stdin)")
}

func runEncrypt(ctx context.Context, cfg *Config, opts *encryptOptions, args []string, stdin io.Reader, w io.Writer) error {
	if opts.Algorithm == "" {
		return errors.New("--alg is required")
	}
	payload, err := readPayload(args, opts.Input, stdin)
	if err != nil {
		return err
	}

	s, err := cfg.openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	key, err := opts.load(s.pool)
	if err != nil {
		return err
	}
	defer key.Dispose()

	recipient := key
	if key.KeyType() != secret.KeyTypeSymmetric {
		// Encryption only needs the public half.
		if recipient, err = secret.Public(key); err != nil {
			return err
		}
		defer recipient.Dispose()
	}

	enc := opts.Encryption
	if enc == "" {
		enc = s.enc.DefaultContentEncryption()
	}
	printVerbose("encrypting %d bytes with %s/%s", len(payload), opts.Algorithm, enc)

	token, err := s.enc.EncodeEncrypted(ctx, payload, &jose.EncryptingCredentials{
		Key:         recipient,
		Algorithm:   opts.Algorithm,
		Encryption:  enc,
		Compression: opts.Compression,
		KeyID:       opts.KeyID,
	}, extraHeader(opts.Type, opts.ContentType))
	if err != nil {
		return fmt.Errorf("failed to encrypt: %w", err)
	}
	return NewPrinter(cfg.OutputFormat, w).PrintToken(token)
}

func runDecrypt(ctx context.Context, cfg *Config, opts *decodeOptions, args []string, stdin io.Reader, w io.Writer) error {
	if !opts.isSet() {
		return ErrKeyRequired
	}
	tok, err := decodeToken(ctx, cfg, opts, KindJWE, args, stdin)
	if err != nil {
		return fmt.Errorf("failed to decrypt: %w", err)
	}
	return NewPrinter(cfg.OutputFormat, w).PrintPayload(tok)
}
