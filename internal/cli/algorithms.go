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

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
)

var algorithmsKind string

// algorithmsCmd lists the registered algorithm codes
var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List supported algorithms",
	Long: `List the algorithm codes registered with the engine, grouped by kind:
signature, key-management, content-encryption and compression.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runAlgorithms(getConfig(), algorithmsKind, os.Stdout); err != nil {
			handleError(err)
		}
	},
}

func init() {
	algorithmsCmd.Flags().StringVar(&algorithmsKind, "kind", "",
		"only list one kind (signature, key-management, content-encryption, compression)")
}

func runAlgorithms(cfg *Config, kind string, w io.Writer) error {
	s, err := cfg.openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	registry := s.enc.Registry()
	var groups []AlgorithmGroup
	for _, k := range jwa.Kinds() {
		if kind != "" && kind != k.String() {
			continue
		}
		groups = append(groups, AlgorithmGroup{Kind: k.String(), Codes: registry.Codes(k)})
	}
	if len(groups) == 0 {
		return fmt.Errorf("unknown algorithm kind: %s", kind)
	}
	printVerbose("%d algorithms registered", registry.Len())
	return NewPrinter(cfg.OutputFormat, w).PrintAlgorithms(groups)
}
