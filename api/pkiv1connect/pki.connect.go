// Package pkiv1connect defines the pki.v1.PKIService RPC surface. Messages are
// protobuf well-known types: GetCA takes Empty and IssueCertificate takes the
// PEM CSR as BytesValue; both return the PEM certificate as BytesValue.
package pkiv1connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// PKIServiceName is the fully-qualified name of the PKIService service.
	PKIServiceName = "pki.v1.PKIService"
)

const (
	// PKIServiceGetCAProcedure is the fully-qualified name of the PKIService's GetCA RPC.
	PKIServiceGetCAProcedure = "/pki.v1.PKIService/GetCA"
	// PKIServiceIssueCertificateProcedure is the fully-qualified name of the PKIService's IssueCertificate RPC.
	PKIServiceIssueCertificateProcedure = "/pki.v1.PKIService/IssueCertificate"
)

// PKIServiceClient is a client for the pki.v1.PKIService service.
type PKIServiceClient interface {
	GetCA(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[wrapperspb.BytesValue], error)
	IssueCertificate(context.Context, *connect.Request[wrapperspb.BytesValue]) (*connect.Response[wrapperspb.BytesValue], error)
}

// NewPKIServiceClient constructs a client for the pki.v1.PKIService service.
// The URL supplied here should be the base URL for the Connect or gRPC server
// (for example, http://api.acme.com or https://acme.com/grpc).
func NewPKIServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) PKIServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &pKIServiceClient{
		getCA: connect.NewClient[emptypb.Empty, wrapperspb.BytesValue](
			httpClient,
			baseURL+PKIServiceGetCAProcedure,
			connect.WithIdempotency(connect.IdempotencyNoSideEffects),
			connect.WithClientOptions(opts...),
		),
		issueCertificate: connect.NewClient[wrapperspb.BytesValue, wrapperspb.BytesValue](
			httpClient,
			baseURL+PKIServiceIssueCertificateProcedure,
			connect.WithClientOptions(opts...),
		),
	}
}

type pKIServiceClient struct {
	getCA            *connect.Client[emptypb.Empty, wrapperspb.BytesValue]
	issueCertificate *connect.Client[wrapperspb.BytesValue, wrapperspb.BytesValue]
}

func (c *pKIServiceClient) GetCA(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[wrapperspb.BytesValue], error) {
	return c.getCA.CallUnary(ctx, req)
}

func (c *pKIServiceClient) IssueCertificate(ctx context.Context, req *connect.Request[wrapperspb.BytesValue]) (*connect.Response[wrapperspb.BytesValue], error) {
	return c.issueCertificate.CallUnary(ctx, req)
}

// PKIServiceHandler is an implementation of the pki.v1.PKIService service.
type PKIServiceHandler interface {
	GetCA(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[wrapperspb.BytesValue], error)
	IssueCertificate(context.Context, *connect.Request[wrapperspb.BytesValue]) (*connect.Response[wrapperspb.BytesValue], error)
}

// NewPKIServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewPKIServiceHandler(svc PKIServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	getCAHandler := connect.NewUnaryHandler(
		PKIServiceGetCAProcedure,
		svc.GetCA,
		connect.WithIdempotency(connect.IdempotencyNoSideEffects),
		connect.WithHandlerOptions(opts...),
	)
	issueCertificateHandler := connect.NewUnaryHandler(
		PKIServiceIssueCertificateProcedure,
		svc.IssueCertificate,
		connect.WithHandlerOptions(opts...),
	)
	return "/pki.v1.PKIService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PKIServiceGetCAProcedure:
			getCAHandler.ServeHTTP(w, r)
		case PKIServiceIssueCertificateProcedure:
			issueCertificateHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
