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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jeremyhahn/go-josekit/pkg/jose"
	"github.com/jeremyhahn/go-josekit/pkg/jose/header"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText  OutputFormat = "text"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// AlgorithmGroup is the registered codes of one algorithm kind.
type AlgorithmGroup struct {
	Kind  string   `json:"kind"`
	Codes []string `json:"codes"`
}

// PrintAlgorithms prints registered algorithm codes grouped by kind
func (p *Printer) PrintAlgorithms(groups []AlgorithmGroup) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"algorithms": groups,
		})
	case OutputFormatTable:
		fmt.Fprintf(p.writer, "%-20s %s\n", "KIND", "ALGORITHM")
		fmt.Fprintln(p.writer, strings.Repeat("-", 42))
		for _, g := range groups {
			for _, code := range g.Codes {
				fmt.Fprintf(p.writer, "%-20s %s\n", g.Kind, code)
			}
		}
		return nil
	case OutputFormatText:
		for _, g := range groups {
			fmt.Fprintf(p.writer, "%s:\n", g.Kind)
			for _, code := range g.Codes {
				fmt.Fprintf(p.writer, "  - %s\n", code)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintToken prints a compact serialized token
func (p *Printer) PrintToken(token string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"token": token,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, token)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintPayload prints a verified or decrypted token. Text output is the raw
// payload so it can be piped.
func (p *Printer) PrintPayload(tok *jose.Token) error {
	switch p.format {
	case OutputFormatJSON:
		hdr, err := tok.Header.MarshalJSON()
		if err != nil {
			return err
		}
		result := map[string]interface{}{
			"header":    json.RawMessage(hdr),
			"encrypted": tok.Encrypted,
		}
		if utf8.Valid(tok.Payload) {
			result["payload"] = string(tok.Payload)
		} else {
			result["payload_b64"] = base64.RawURLEncoding.EncodeToString(tok.Payload)
		}
		return p.printJSON(result)
	case OutputFormatTable:
		if err := p.printHeaderTable(tok.Header); err != nil {
			return err
		}
		fmt.Fprintln(p.writer)
		_, err := p.writer.Write(tok.Payload)
		return err
	case OutputFormatText:
		_, err := p.writer.Write(tok.Payload)
		return err
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// TokenInfo describes a token without verifying it.
type TokenInfo struct {
	Kind     string
	Segments int
	Header   *header.Header
}

// PrintTokenInfo prints an unverified token header
func (p *Printer) PrintTokenInfo(info *TokenInfo) error {
	switch p.format {
	case OutputFormatJSON:
		hdr, err := info.Header.MarshalJSON()
		if err != nil {
			return err
		}
		return p.printJSON(map[string]interface{}{
			"kind":     info.Kind,
			"segments": info.Segments,
			"header":   json.RawMessage(hdr),
			"verified": false,
		})
	case OutputFormatTable:
		fmt.Fprintf(p.writer, "Kind:     %s\n", info.Kind)
		fmt.Fprintf(p.writer, "Segments: %d\n\n", info.Segments)
		return p.printHeaderTable(info.Header)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Kind:     %s (unverified)\n", info.Kind)
		fmt.Fprintf(p.writer, "Segments: %d\n", info.Segments)
		fmt.Fprintln(p.writer, "Header:")
		for _, name := range info.Header.Names() {
			v, _ := info.Header.Get(name)
			fmt.Fprintf(p.writer, "  %s: %s\n", name, formatValue(v))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func (p *Printer) printHeaderTable(h *header.Header) error {
	fmt.Fprintf(p.writer, "%-12s %s\n", "PARAMETER", "VALUE")
	fmt.Fprintln(p.writer, strings.Repeat("-", 50))
	for _, name := range h.Names() {
		v, _ := h.Get(name)
		fmt.Fprintf(p.writer, "%-12s %s\n", name, formatValue(v))
	}
	return nil
}

// formatValue renders a header value on one line.
func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// KeyInfo describes generated key material.
type KeyInfo struct {
	Type       string
	Bits       int
	Thumbprint string
	Material   string
}

// PrintKey prints generated key material
func (p *Printer) PrintKey(info *KeyInfo) error {
	switch p.format {
	case OutputFormatJSON:
		result := map[string]interface{}{
			"type": info.Type,
			"bits": info.Bits,
			"key":  info.Material,
		}
		if info.Thumbprint != "" {
			result["thumbprint"] = info.Thumbprint
		}
		return p.printJSON(result)
	case OutputFormatTable, OutputFormatText:
		fmt.Fprint(p.writer, info.Material)
		if !strings.HasSuffix(info.Material, "\n") {
			fmt.Fprintln(p.writer)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// BenchResult summarizes a benchmark run.
type BenchResult struct {
	Operation       string
	Algorithm       string
	Encryption      string
	Iterations      int
	Elapsed         time.Duration
	PoolAllocated   int64
	PoolRetained    int
	PoolOutstanding int64
}

// OpsPerSecond returns the measured throughput.
func (r *BenchResult) OpsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Iterations) / r.Elapsed.Seconds()
}

// PrintBench prints benchmark results
func (p *Printer) PrintBench(r *BenchResult) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"operation":        r.Operation,
			"algorithm":        r.Algorithm,
			"encryption":       r.Encryption,
			"iterations":       r.Iterations,
			"elapsed_ms":       r.Elapsed.Milliseconds(),
			"ops_per_second":   r.OpsPerSecond(),
			"pool_allocated":   r.PoolAllocated,
			"pool_retained":    r.PoolRetained,
			"pool_outstanding": r.PoolOutstanding,
		})
	case OutputFormatTable, OutputFormatText:
		alg := r.Algorithm
		if r.Encryption != "" {
			alg += "/" + r.Encryption
		}
		fmt.Fprintf(p.writer, "Operation:   %s\n", r.Operation)
		fmt.Fprintf(p.writer, "Algorithm:   %s\n", alg)
		fmt.Fprintf(p.writer, "Iterations:  %d\n", r.Iterations)
		fmt.Fprintf(p.writer, "Elapsed:     %s\n", r.Elapsed)
		fmt.Fprintf(p.writer, "Ops/sec:     %.1f\n", r.OpsPerSecond())
		fmt.Fprintf(p.writer, "Pool pages:  %d allocated, %d retained, %d outstanding\n",
			r.PoolAllocated, r.PoolRetained, r.PoolOutstanding)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// printJSON prints data as formatted JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
