package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/capki/internal/auth"
	"github.com/wolfeidau/capki/internal/pki"
)

const (
	contentTypeCACert   = "application/x-x509-ca-cert"
	contentTypeUserCert = "application/x-x509-user-cert"

	// maxCSRBytes bounds the request body of POST /csr.
	maxCSRBytes = 64 * 1024
)

// handleGetCA serves the root certificate as a download.
func (s *PKIServer) handleGetCA(w http.ResponseWriter, r *http.Request) {
	certPEM, err := s.CACertificate()
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeCertificate(w, contentTypeCACert, "ca-cert.crt", certPEM)
}

// handleCSR signs the PEM CSR in the request body.
func (s *PKIServer) handleCSR(w http.ResponseWriter, r *http.Request) {
	csrPEM, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCSRBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	certPEM, err := s.Issue(r.Context(), csrPEM)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeCertificate(w, contentTypeUserCert, "client-cert.crt", certPEM)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("healthy"))
}

func writeCertificate(w http.ResponseWriter, contentType, filename string, certPEM []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(certPEM)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		http.Error(w, http.StatusText(status), status)
		return
	}

	http.Error(w, err.Error(), status)
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, pki.ErrParse):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrPermissionDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
