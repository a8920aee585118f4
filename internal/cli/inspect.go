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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-josekit/pkg/jose"
)

var inspectInput string

// inspectCmd prints a token header without verifying it
var inspectCmd = &cobra.Command{
	Use:   "inspect [token]",
	Short: "Print a token's protected header without verifying it",
	Long: `Decode and print the protected header of a compact JWS or JWE.
Nothing is verified or decrypted; do not trust the output.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInspect(getConfig(), inspectInput, args, os.Stdin, os.Stdout); err != nil {
			handleError(err)
		}
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectInput, "in", "i", "", "read the token from a file (- for stdin)")
}

func runInspect(cfg *Config, input string, args []string, stdin io.Reader, w io.Writer) error {
	token, err := readToken(args, input, stdin)
	if err != nil {
		return err
	}
	kind := tokenKind(token)
	if kind == "" {
		return fmt.Errorf("not a compact JWS or JWE: %d segments", strings.Count(token, ".")+1)
	}
	h, err := jose.ParseHeader(token)
	if err != nil {
		return err
	}
	return NewPrinter(cfg.OutputFormat, w).PrintTokenInfo(&TokenInfo{
		Kind:     kind,
		Segments: strings.Count(token, ".") + 1,
		Header:   h,
	})
}
