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
	"crypto"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-josekit/internal/password"
	"github.com/jeremyhahn/go-josekit/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwe"
	"github.com/jeremyhahn/go-josekit/pkg/memory"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// Key types accepted by keygen.
const (
	KeyTypeOct      = "oct"
	KeyTypeRSA      = "rsa"
	KeyTypeEC       = "ec"
	KeyTypePassword = "password"
)

// Defaults and limits of generated keys.
const (
	DefaultOctBits = 256
	DefaultRSABits = 2048
	MinRSABits     = 2048
	DefaultCurve   = "P-256"
)

// keygenOptions holds the keygen flags.
type keygenOptions struct {
	Type        string
	Size        int
	Curve       string
	Out         string
	PublicOut   string
	PEMPassword string
}

var keygenOpts keygenOptions

// keygenCmd generates key material
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a key",
	Long: `Generate key material for the sign and encrypt commands.

Key types:
  oct:      random symmetric key, written as base64url (HS*, A*KW, dir)
  rsa:      RSA key pair, written as PKCS#8 PEM (RS*, PS*, RSA-OAEP*)
  ec:       EC key pair, written as PKCS#8 PEM (ES*, ECDH-ES*)
  password: random printable password (PBES2-*)`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runKeygen(getConfig(), &keygenOpts, os.Stdout); err != nil {
			handleError(err)
		}
	},
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenOpts.Type, "type", "t", KeyTypeOct, "key type (oct, rsa, ec, password)")
	keygenCmd.Flags().IntVarP(&keygenOpts.Size, "size", "s", 0,
		"key size in bits (oct, rsa) or length in characters (password)")
	keygenCmd.Flags().StringVar(&keygenOpts.Curve, "curve", DefaultCurve, "EC curve (P-256, P-384, P-521)")
	keygenCmd.Flags().StringVar(&keygenOpts.Out, "out", "", "write the key to a file instead of stdout")
	keygenCmd.Flags().StringVar(&keygenOpts.PublicOut, "public-out", "", "write the public key PEM to a file (rsa, ec)")
	keygenCmd.Flags().StringVar(&keygenOpts.PEMPassword, "pem-password", "", "encrypt the private key PEM with a password")
}

func runKeygen(cfg *Config, opts *keygenOptions, w io.Writer) error {
	s, err := cfg.openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	key, info, err := generateKey(s.pool, opts)
	if err != nil {
		return err
	}
	defer key.Dispose()
	printVerbose("generated %d-bit %s key", info.Bits, info.Type)

	if opts.PublicOut != "" {
		if err := writePublicKey(key, opts.PublicOut); err != nil {
			return err
		}
	}

	printer := NewPrinter(cfg.OutputFormat, w)
	if opts.Out == "" {
		return printer.PrintKey(info)
	}
	if err := writeKeyFile(opts.Out, []byte(info.Material)); err != nil {
		return err
	}
	return printer.PrintSuccess(fmt.Sprintf("Wrote %d-bit %s key to %s", info.Bits, info.Type, opts.Out))
}

// generateKey creates the key and its printable form.
func generateKey(pool *memory.Pool, opts *keygenOptions) (secret.SecretKey, *KeyInfo, error) {
	switch opts.Type {
	case KeyTypeOct:
		bits := opts.Size
		if bits == 0 {
			bits = DefaultOctBits
		}
		key, err := secret.GenerateSymmetricKey(pool, bits)
		if err != nil {
			return nil, nil, err
		}
		return key, &KeyInfo{
			Type:     opts.Type,
			Bits:     bits,
			Material: base64.RawURLEncoding.EncodeToString(key.Bytes()) + "\n",
		}, nil

	case KeyTypePassword:
		length := opts.Size
		if length == 0 {
			length = password.DefaultLength
		}
		key, err := jwe.GeneratePasswordKey(pool, length)
		if err != nil {
			return nil, nil, err
		}
		return key, &KeyInfo{
			Type:     opts.Type,
			Bits:     key.KeySizeBits(),
			Material: string(key.Bytes()) + "\n",
		}, nil

	case KeyTypeRSA:
		bits := opts.Size
		if bits == 0 {
			bits = DefaultRSABits
		}
		if bits < MinRSABits {
			return nil, nil, fmt.Errorf("%w: RSA keys need at least %d bits", secret.ErrInvalidKeySize, MinRSABits)
		}
		key, err := secret.GenerateRSAKey(bits)
		if err != nil {
			return nil, nil, err
		}
		return asymmetricInfo(key, key.PublicKey(), opts)

	case KeyTypeEC:
		curve, err := jwk.Curve(opts.Curve)
		if err != nil {
			return nil, nil, err
		}
		key, err := secret.GenerateECCKey(curve)
		if err != nil {
			return nil, nil, err
		}
		return asymmetricInfo(key, key.PublicKey(), opts)

	default:
		return nil, nil, fmt.Errorf("unknown key type: %s", opts.Type)
	}
}

func asymmetricInfo(key secret.SecretKey, pub crypto.PublicKey, opts *keygenOptions) (secret.SecretKey, *KeyInfo, error) {
	var pemPassword []byte
	if opts.PEMPassword != "" {
		pemPassword = []byte(opts.PEMPassword)
	}
	pemBytes, err := secret.MarshalPEM(key, pemPassword)
	if err != nil {
		key.Dispose()
		return nil, nil, err
	}
	thumbprint, err := jwk.ThumbprintSHA256(pub)
	if err != nil {
		key.Dispose()
		return nil, nil, err
	}
	return key, &KeyInfo{
		Type:       opts.Type,
		Bits:       key.KeySizeBits(),
		Thumbprint: thumbprint,
		Material:   string(pemBytes),
	}, nil
}

func writePublicKey(key secret.SecretKey, path string) error {
	pub, err := secret.Public(key)
	if err != nil {
		return err
	}
	defer pub.Dispose()
	pemBytes, err := secret.MarshalPEM(pub, nil)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, pemBytes, 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	printVerbose("wrote public key to %s", path)
	return nil
}

func writeKeyFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}
