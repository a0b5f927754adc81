package server

import (
	"net/http"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/capki/api/pkiv1connect"
	"github.com/wolfeidau/capki/internal/auth"
	httpmiddleware "github.com/wolfeidau/capki/internal/http"
)

// HealthPath is served without authorization for load balancer health checks.
const HealthPath = "/healthz"

// Server wires the PKI service onto RPC and REST routes behind the authorizer.
type Server struct {
	pki   *PKIServer
	authz auth.Authorizer
	log   zerolog.Logger
}

// NewServer creates a new server. A nil authorizer allows every call.
func NewServer(pkiServer *PKIServer, authz auth.Authorizer, log zerolog.Logger) *Server {
	if authz == nil {
		authz = auth.AllowAll{}
	}
	return &Server{
		pki:   pkiServer,
		authz: authz,
		log:   log,
	}
}

// Handler returns the HTTP handler for the server. RPCs are served under
// /pki.v1.PKIService/ and the REST routes are GET /ca, POST /csr and GET /healthz.
func (s *Server) Handler(interceptors ...connect.Interceptor) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+HealthPath, handleHealthz)

	rest := httpmiddleware.RequestLog(s.log)
	mux.Handle("GET /ca", rest(http.HandlerFunc(s.pki.handleGetCA)))
	mux.Handle("POST /csr", rest(http.HandlerFunc(s.pki.handleCSR)))

	path, handler := pkiv1connect.NewPKIServiceHandler(
		s.pki,
		connect.WithInterceptors(interceptors...),
		connect.WithReadMaxBytes(maxCSRBytes),
	)
	mux.Handle(path, handler)

	return auth.Middleware(s.authz, HealthPath)(mux)
}
