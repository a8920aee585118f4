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
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jeremyhahn/go-josekit/pkg/jose"
	"github.com/jeremyhahn/go-josekit/pkg/metrics"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// Bench defaults.
const (
	DefaultBenchIterations  = 1000
	DefaultBenchPayloadSize = 256
	benchSampleInterval     = time.Second
)

// benchOptions holds the bench flags.
type benchOptions struct {
	keyOptions
	Algorithm   string
	Encryption  string
	Iterations  int
	PayloadSize int
	Rate        float64
}

var benchOpts benchOptions

// benchCmd measures round trip throughput
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure sign/verify or encrypt/decrypt throughput",
	Long: `Run repeated round trips with one key and report throughput and
secure pool usage. A signature --alg runs sign and verify; a key management
--alg runs encrypt and decrypt.

Examples:
  jose bench --alg HS256 --key hmac.key
  jose bench --alg ECDH-ES --enc A256GCM --key ec.pem --iterations 500
  jose bench --alg A128KW --key kek.key --rate 200`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runBench(cmd.Context(), getConfig(), &benchOpts, os.Stdout); err != nil {
			handleError(err)
		}
	},
}

func init() {
	addKeyFlags(benchCmd, &benchOpts.keyOptions)
	benchCmd.Flags().StringVarP(&benchOpts.Algorithm, "alg", "a", "", "signature or key management algorithm")
	benchCmd.Flags().StringVarP(&benchOpts.Encryption, "enc", "e", "", "content encryption for key management algorithms")
	benchCmd.Flags().IntVarP(&benchOpts.Iterations, "iterations", "n", DefaultBenchIterations, "number of round trips")
	benchCmd.Flags().IntVar(&benchOpts.PayloadSize, "payload-size", DefaultBenchPayloadSize, "payload size in bytes")
	benchCmd.Flags().Float64Var(&benchOpts.Rate, "rate", 0, "limit round trips per second (0 is unlimited)")
	_ = benchCmd.MarkFlagRequired("alg")
}

// roundTrip encodes and decodes one payload.
type roundTrip func(ctx context.Context, payload []byte) error

func runBench(ctx context.Context, cfg *Config, opts *benchOptions, w io.Writer) error {
	if opts.Algorithm == "" {
		return errors.New("--alg is required")
	}
	if opts.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive: %d", opts.Iterations)
	}
	if opts.PayloadSize < 0 {
		return fmt.Errorf("payload size must not be negative: %d", opts.PayloadSize)
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

	result := &BenchResult{Algorithm: opts.Algorithm, Iterations: opts.Iterations}
	trip, err := s.benchRoundTrip(opts, key, result)
	if err != nil {
		return err
	}

	collector := metrics.NewResourceCollector(ctx, benchSampleInterval)
	collector.WatchPool("cli", func() int64 { return s.pool.Stats().Allocated })
	go collector.Start()
	defer collector.Stop()

	var limiter *rate.Limiter
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	payload := make([]byte, opts.PayloadSize)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}

	start := time.Now()
	for i := 0; i < opts.Iterations; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := trip(ctx, payload); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
	}
	result.Elapsed = time.Since(start)

	collector.Collect()
	stats := s.pool.Stats()
	result.PoolAllocated = stats.Allocated
	result.PoolRetained = stats.Retained
	result.PoolOutstanding = stats.Outstanding

	return NewPrinter(cfg.OutputFormat, w).PrintBench(result)
}

// benchRoundTrip picks sign/verify or encrypt/decrypt by the kind alg is
// registered as.
func (s *session) benchRoundTrip(opts *benchOptions, key secret.SecretKey, result *BenchResult) (roundTrip, error) {
	registry := s.enc.Registry()

	if _, err := registry.Signature(opts.Algorithm); err == nil {
		result.Operation = "sign+verify"
		creds := &jose.SigningCredentials{Key: key, Algorithm: opts.Algorithm}
		return func(ctx context.Context, payload []byte) error {
			token, err := s.enc.EncodeSigned(ctx, payload, creds, nil)
			if err != nil {
				return err
			}
			_, err = s.dec.Decode(ctx, token, key)
			return err
		}, nil
	}

	if _, err := registry.KeyManagement(opts.Algorithm); err != nil {
		return nil, err
	}
	enc := opts.Encryption
	if enc == "" {
		enc = s.enc.DefaultContentEncryption()
	}
	result.Operation = "encrypt+decrypt"
	result.Encryption = enc
	creds := &jose.EncryptingCredentials{Key: key, Algorithm: opts.Algorithm, Encryption: enc}
	return func(ctx context.Context, payload []byte) error {
		token, err := s.enc.EncodeEncrypted(ctx, payload, creds, nil)
		if err != nil {
			return err
		}
		_, err = s.dec.Decode(ctx, token, key)
		return err
	}, nil
}
