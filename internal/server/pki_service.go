package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/capki/api/pkiv1connect"
	"github.com/wolfeidau/capki/internal/auth"
	"github.com/wolfeidau/capki/internal/pki"
	"github.com/wolfeidau/capki/internal/store"
	"github.com/wolfeidau/capki/internal/telemetry"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var _ pkiv1connect.PKIServiceHandler = (*PKIServer)(nil)

// CertificateAuthority serves the cached root certificate.
type CertificateAuthority interface {
	CertificatePEM() []byte
}

// CertificateIssuer signs PEM CSRs.
type CertificateIssuer interface {
	Sign(ctx context.Context, csrPEM []byte) (*pki.IssuedCertificate, error)
}

// PKIServer implements GetCA and IssueCertificate over a bootstrapped CA.
type PKIServer struct {
	authority CertificateAuthority
	issuer    CertificateIssuer
	ledger    store.CertificateStore
}

func NewPKIServer(authority CertificateAuthority, issuer CertificateIssuer) *PKIServer {
	return &PKIServer{
		authority: authority,
		issuer:    issuer,
	}
}

// WithLedger records every issued certificate in ledger.
func (s *PKIServer) WithLedger(ledger store.CertificateStore) *PKIServer {
	s.ledger = ledger
	return s
}

// CACertificate returns the root certificate PEM.
func (s *PKIServer) CACertificate() ([]byte, error) {
	certPEM := s.authority.CertificatePEM()
	if len(certPEM) == 0 {
		return nil, fmt.Errorf("CA certificate is not encoded: %w", pki.ErrCrypto)
	}
	return certPEM, nil
}

// Issue signs csrPEM and returns the leaf certificate PEM.
func (s *PKIServer) Issue(ctx context.Context, csrPEM []byte) ([]byte, error) {
	issued, err := s.issuer.Sign(ctx, csrPEM)
	if err != nil {
		return nil, err
	}

	s.record(ctx, issued)

	return issued.PEM, nil
}

func (s *PKIServer) GetCA(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[wrapperspb.BytesValue], error) {
	certPEM, err := s.CACertificate()
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(wrapperspb.Bytes(certPEM)), nil
}

func (s *PKIServer) IssueCertificate(ctx context.Context, req *connect.Request[wrapperspb.BytesValue]) (*connect.Response[wrapperspb.BytesValue], error) {
	certPEM, err := s.Issue(ctx, req.Msg.GetValue())
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(wrapperspb.Bytes(certPEM)), nil
}

// record adds the certificate to the ledger. The serial is already consumed,
// so a ledger failure is logged and the certificate is still returned.
func (s *PKIServer) record(ctx context.Context, issued *pki.IssuedCertificate) {
	if s.ledger == nil {
		return
	}

	meta := store.NewCertMetadataFromX509(issued.Certificate)
	if err := s.ledger.Register(ctx, meta); err != nil {
		telemetry.GetMetrics().LedgerErrorsTotal.Add(ctx, 1)
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("serial", meta.SerialNumber).
			Msg("failed to record issued certificate")
		return
	}

	zerolog.Ctx(ctx).Debug().Str("serial", meta.SerialNumber).Msg("recorded issued certificate")
}

// toConnectError maps CA errors onto RPC codes: bad input is the caller's
// fault, storage and crypto failures are ours.
func toConnectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	switch {
	case errors.Is(err, pki.ErrParse):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, auth.ErrPermissionDenied):
		return connect.NewError(connect.CodePermissionDenied, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
