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
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-josekit/pkg/jose"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jws"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

var (
	// ErrNotSigned is returned by verify for a JWE.
	ErrNotSigned = errors.New("token is a JWE; use decrypt")

	// ErrNotEncrypted is returned by decrypt for a JWS.
	ErrNotEncrypted = errors.New("token is a JWS; use verify")
)

// Token kinds by segment count.
const (
	KindJWS = "JWS"
	KindJWE = "JWE"
)

// signOptions holds the sign flags.
type signOptions struct {
	keyOptions
	Algorithm   string
	KeyID       string
	Type        string
	ContentType string
	Input       string
}

// decodeOptions holds the verify and decrypt flags.
type decodeOptions struct {
	keyOptions
	Input string
}

var (
	signOpts   signOptions
	verifyOpts decodeOptions
)

// signCmd signs a payload into a compact JWS
var signCmd = &cobra.Command{
	Use:   "sign [payload]",
	Short: "Sign a payload as a compact JWS",
	Long: `Sign a payload and print the compact JWS.

The payload is the argument, the file named by --in, or stdin.

Examples:
  jose sign --alg HS256 --key hmac.key "hello"
  jose sign --alg ES256 --key ec.pem --kid k1 --typ JWT --in claims.json`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSign(cmd.Context(), getConfig(), &signOpts, args, os.Stdin, os.Stdout); err != nil {
			handleError(err)
		}
	},
}

// verifyCmd verifies a compact JWS
var verifyCmd = &cobra.Command{
	Use:   "verify [token]",
	Short: "Verify a compact JWS and print its payload",
	Long: `Verify a compact JWS and print its payload. Verification fails
closed: nothing is printed unless the signature is valid.

The token is the argument, the file named by --in, or stdin.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runVerify(cmd.Context(), getConfig(), &verifyOpts, args, os.Stdin, os.Stdout); err != nil {
			handleError(err)
		}
	},
}

func init() {
	addKeyFlags(signCmd, &signOpts.keyOptions)
	signCmd.Flags().StringVarP(&signOpts.Algorithm, "alg", "a", "", "signature algorithm (e.g. HS256, RS256, ES256)")
	signCmd.Flags().StringVar(&signOpts.KeyID, "kid", "", "key ID header")
	signCmd.Flags().StringVar(&signOpts.Type, "typ", "", "type header")
	signCmd.Flags().StringVar(&signOpts.ContentType, "cty", "", "content type header")
	signCmd.Flags().StringVarP(&signOpts.Input, "in", "i", "", "read the payload from a file (- for stdin)")
	_ = signCmd.MarkFlagRequired("alg")

	addKeyFlags(verifyCmd, &verifyOpts.keyOptions)
	verifyCmd.Flags().StringVarP(&verifyOpts.Input, "in", "i", "", "read the token from a file (- for stdin)")
}

func runSign(ctx context.Context, cfg *Config, opts *signOptions, args []string, stdin io.Reader, w io.Writer) error {
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

	var key secret.SecretKey
	if opts.Algorithm != jws.None || opts.isSet() {
		if key, err = opts.load(s.pool); err != nil {
			return err
		}
		defer key.Dispose()
	}

	printVerbose("signing %d bytes with %s", len(payload), opts.Algorithm)
	token, err := s.enc.EncodeSigned(ctx, payload, &jose.SigningCredentials{
		Key:       key,
		Algorithm: opts.Algorithm,
		KeyID:     opts.KeyID,
	}, extraHeader(opts.Type, opts.ContentType))
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}
	return NewPrinter(cfg.OutputFormat, w).PrintToken(token)
}

func runVerify(ctx context.Context, cfg *Config, opts *decodeOptions, args []string, stdin io.Reader, w io.Writer) error {
	tok, err := decodeToken(ctx, cfg, opts, KindJWS, args, stdin)
	if err != nil {
		return fmt.Errorf("failed to verify: %w", err)
	}
	return NewPrinter(cfg.OutputFormat, w).PrintPayload(tok)
}

// decodeToken reads a token of the wanted kind and decodes it with the
// named key.
func decodeToken(ctx context.Context, cfg *Config, opts *decodeOptions, want string, args []string, stdin io.Reader) (*jose.Token, error) {
	token, err := readToken(args, opts.Input, stdin)
	if err != nil {
		return nil, err
	}
	switch kind := tokenKind(token); {
	case want == KindJWS && kind == KindJWE:
		return nil, ErrNotSigned
	case want == KindJWE && kind == KindJWS:
		return nil, ErrNotEncrypted
	}

	s, err := cfg.openSession()
	if err != nil {
		return nil, err
	}
	defer s.Close()

	var key secret.SecretKey
	if opts.isSet() {
		if key, err = opts.load(s.pool); err != nil {
			return nil, err
		}
		defer key.Dispose()
	}

	printVerbose("decoding %s of %d bytes", want, len(token))
	return s.dec.Decode(ctx, token, key)
}

// tokenKind classifies a compact token by its segment count. Malformed
// tokens are left to the decoder.
func tokenKind(token string) string {
	switch strings.Count(token, ".") {
	case 2:
		return KindJWS
	case 4:
		return KindJWE
	default:
		return ""
	}
}
