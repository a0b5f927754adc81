package memory

import (
	"context"
	"math/big"
	"slices"
	"sync"

	"github.com/wolfeidau/capki/internal/store"
)

var _ store.CertificateStore = (*CertificateStore)(nil)

// CertificateStore is an in-memory implementation of CertificateStore for development and testing
type CertificateStore struct {
	mu    sync.RWMutex
	certs map[string]*store.CertMetadata // indexed by serial number
}

// NewCertificateStore creates a new in-memory certificate store
func NewCertificateStore() *CertificateStore {
	return &CertificateStore{
		certs: make(map[string]*store.CertMetadata),
	}
}

// Get retrieves certificate metadata by serial number
func (s *CertificateStore) Get(ctx context.Context, serialNumber string) (*store.CertMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cert, exists := s.certs[serialNumber]
	if !exists {
		return nil, store.ErrCertNotFound
	}

	// Return a copy to avoid external modifications
	c := *cert
	return &c, nil
}

// Register stores certificate metadata
func (s *CertificateStore) Register(ctx context.Context, cert *store.CertMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.certs[cert.SerialNumber]; exists {
		return store.ErrCertAlreadyExists
	}

	c := *cert
	s.certs[cert.SerialNumber] = &c

	return nil
}

// List returns registered certificates ordered by serial number
func (s *CertificateStore) List(ctx context.Context, opts store.ListCertificatesOptions) ([]*store.CertMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*store.CertMetadata, 0, len(s.certs))
	for _, cert := range s.certs {
		c := *cert
		result = append(result, &c)
	}

	slices.SortFunc(result, func(a, b *store.CertMetadata) int {
		return compareSerials(a.SerialNumber, b.SerialNumber)
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// compareSerials orders decimal serials numerically, falling back to string order.
func compareSerials(a, b string) int {
	x, okA := new(big.Int).SetString(a, 10)
	y, okB := new(big.Int).SetString(b, 10)
	if okA && okB {
		return x.Cmp(y)
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
