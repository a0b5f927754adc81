package logger

import (
	"context"
	"errors"
	"os"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader is echoed back so callers can correlate a certificate
// request with the server's log lines.
const RequestIDHeader = "X-Request-Id"

// Setup returns the process logger: JSON on stderr, or a console writer with
// stack traces and debug level when dev is set.
func Setup(dev bool) zerolog.Logger {
	if !dev {
		return zerolog.New(os.Stderr).Level(zerolog.InfoLevel).With().Timestamp().Caller().Logger()
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(console).Level(zerolog.DebugLevel).With().Timestamp().Caller().Stack().Logger()
}

var _ connect.Interceptor = (*ConnectRequests)(nil)

// ConnectRequests logs every PKI call with its procedure, peer, request id and
// duration, and attaches a request scoped logger to the context.
//
// Rejected input and failed authorization are the caller's fault and are
// logged at warn; anything else that fails is an error.
type ConnectRequests struct {
	logger zerolog.Logger
}

func NewConnectRequests(logger zerolog.Logger) *ConnectRequests {
	return &ConnectRequests{logger: logger}
}

func (c *ConnectRequests) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		started := time.Now()
		reqID := requestID(req.Header().Get(RequestIDHeader))

		ctx = c.logger.With().
			Str("request_id", reqID).
			Str("procedure", req.Spec().Procedure).
			Str("protocol", req.Peer().Protocol).
			Str("addr", req.Peer().Addr).
			Logger().WithContext(ctx)

		resp, err := next(ctx, req)
		if err != nil {
			code := connect.CodeOf(err)

			var connectErr *connect.Error
			if errors.As(err, &connectErr) {
				connectErr.Meta().Set(RequestIDHeader, reqID)
			}

			evt := zerolog.Ctx(ctx).Error()
			if callerFault(code) {
				evt = zerolog.Ctx(ctx).Warn()
			}
			evt.Err(err).
				Str("code", code.String()).
				Dur("duration", time.Since(started)).
				Msg("rpc call")

			return resp, err
		}

		resp.Header().Set(RequestIDHeader, reqID)

		zerolog.Ctx(ctx).Info().
			Dur("duration", time.Since(started)).
			Msg("rpc call")

		return resp, nil
	}
}

// WrapStreamingClient is a pass-through, the PKI service only has unary calls.
func (c *ConnectRequests) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler is a pass-through, the PKI service only has unary calls.
func (c *ConnectRequests) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

func callerFault(code connect.Code) bool {
	switch code {
	case connect.CodeInvalidArgument, connect.CodePermissionDenied, connect.CodeUnauthenticated:
		return true
	default:
		return false
	}
}

// requestID keeps a caller supplied id, otherwise generates one.
func requestID(supplied string) string {
	if supplied != "" {
		return supplied
	}
	return uuid.NewString()
}
