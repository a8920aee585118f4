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

package jose

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jeremyhahn/go-josekit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/metrics"
	"github.com/jeremyhahn/go-josekit/pkg/secret"
)

// Span attribute keys. Only codes and sizes are recorded, never key
// material, payloads or tokens.
const (
	AttrAlgorithm   = "jose.alg"
	AttrEncryption  = "jose.enc"
	AttrCompression = "jose.zip"
	AttrKeyID       = "jose.kid"
	AttrPayloadSize = "jose.payload.size"
	AttrTokenSize   = "jose.token.size"
	AttrErrorType   = "jose.error_type"
)

// operation is one traced, measured encode or decode call.
type operation struct {
	e     *engine
	name  string
	alg   string
	start time.Time
	span  trace.Span
}

func (e *engine) begin(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *operation) {
	ctx, span := e.tracer.Start(ctx, "jose."+name, trace.WithAttributes(attrs...))
	return ctx, &operation{e: e, name: name, start: time.Now(), span: span}
}

// annotate records algorithm codes once they are known.
func (op *operation) annotate(attrs ...attribute.KeyValue) {
	for _, a := range attrs {
		if a.Key == AttrAlgorithm {
			op.alg = a.Value.AsString()
		}
	}
	op.span.SetAttributes(attrs...)
}

// end closes the span and records the outcome. It returns err unchanged.
func (op *operation) end(err error) error {
	defer op.span.End()

	alg := op.alg
	if alg == "" {
		alg = "unknown"
	}
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		kind := errorType(err)
		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, kind)
		op.span.SetAttributes(attribute.String(AttrErrorType, kind))
		metrics.RecordError(op.name, kind)
		op.e.logger.Warn("jose operation failed",
			logger.String("operation", op.name),
			logger.Algorithm(alg),
			logger.String("error_type", kind),
			logger.Error(err))
	} else {
		op.span.SetStatus(codes.Ok, "")
		op.e.logger.Debug("jose operation",
			logger.String("operation", op.name),
			logger.Algorithm(alg))
	}
	metrics.RecordOperation(op.name, alg, status, time.Since(op.start).Seconds())
	return err
}

// errorType maps err onto a low-cardinality label.
func errorType(err error) string {
	switch {
	case errors.Is(err, jwa.ErrIntegrityCheckFailed):
		return "integrity_check_failed"
	case errors.Is(err, jwa.ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, ErrUnsecuredNotAllowed), errors.Is(err, ErrAlgorithmNotAllowed):
		return "not_allowed"
	case errors.Is(err, jwa.ErrUnsupportedAlgorithm), errors.Is(err, ErrUnsupportedCritical):
		return "unsupported_algorithm"
	case errors.Is(err, jwa.ErrUnsupportedOperation):
		return "unsupported_operation"
	case errors.Is(err, secret.ErrInvalidKeyType):
		return "invalid_key_type"
	case errors.Is(err, secret.ErrInvalidKeySize):
		return "invalid_key_size"
	case errors.Is(err, secret.ErrKeyDisposed), errors.Is(err, secret.ErrInvalidKey), errors.Is(err, ErrMissingKey):
		return "invalid_key"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
