package client

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

const authorizationHeader = "Authorization"

var _ connect.Interceptor = (*APIKeyInterceptor)(nil)

// APIKeyInterceptor adds the shared secret to outgoing requests.
type APIKeyInterceptor struct {
	apiKey string
}

func NewAPIKeyInterceptor(apiKey string) *APIKeyInterceptor {
	return &APIKeyInterceptor{apiKey: apiKey}
}

// WrapUnary implements connect.Interceptor.
func (i *APIKeyInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			req.Header().Set(authorizationHeader, i.apiKey)
		}
		return next(ctx, req)
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *APIKeyInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		conn.RequestHeader().Set(authorizationHeader, i.apiKey)
		return conn
	}
}

// WrapStreamingHandler is not used for client interceptors.
func (i *APIKeyInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

// NewDebugInterceptor logs every unary call with its outcome and duration at
// debug level.
func NewDebugInterceptor(logger zerolog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			evt := logger.Debug().
				Str("procedure", req.Spec().Procedure).
				Dur("duration", time.Since(start))
			if err != nil {
				evt = evt.Str("code", connect.CodeOf(err).String()).Err(err)
			}
			evt.Msg("rpc call")

			return resp, err
		}
	}
}
