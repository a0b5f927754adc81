package auth

import (
	"context"
	"net/http"
	"slices"

	"connectrpc.com/authn"
	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/capki/internal/telemetry"
)

// CredentialHeader carries the raw shared secret, without a scheme prefix.
const CredentialHeader = "Authorization"

// NewAuthFunc returns an authn.AuthFunc that checks the credential header with
// authz. Requests for publicPaths are let through untouched; for plain HTTP
// routes Procedure is the request path. Rejections carry
// connect.CodePermissionDenied, which is written as HTTP 403 for plain requests.
func NewAuthFunc(authz Authorizer, publicPaths ...string) authn.AuthFunc {
	return func(ctx context.Context, req authn.Request) (any, error) {
		procedure := req.Procedure()
		if slices.Contains(publicPaths, procedure) {
			return nil, nil
		}

		if err := authz.Authorize(ctx, req.Header().Get(CredentialHeader)); err != nil {
			telemetry.GetMetrics().AuthDeniedTotal.Add(ctx, 1)
			log.Debug().Err(err).Str("procedure", procedure).Msg("request rejected by authorizer")
			return nil, connect.NewError(connect.CodePermissionDenied, err)
		}

		return nil, nil
	}
}

// Middleware wraps a handler with the authorizer.
func Middleware(authz Authorizer, publicPaths ...string) func(http.Handler) http.Handler {
	return authn.NewMiddleware(NewAuthFunc(authz, publicPaths...)).Wrap
}
