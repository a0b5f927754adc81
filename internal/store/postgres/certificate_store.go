package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/capki/internal/store"
)

var _ store.CertificateStore = (*CertificateStore)(nil)

// CertificateStore is a PostgreSQL implementation of store.CertificateStore.
type CertificateStore struct {
	pool *pgxpool.Pool
}

// NewCertificateStore connects to the database described by cfg, applying
// migrations when cfg.AutoMigrate is set.
func NewCertificateStore(ctx context.Context, cfg *PoolConfig) (*CertificateStore, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &CertificateStore{pool: pool}, nil
}

// Close releases the pool.
func (s *CertificateStore) Close() {
	s.pool.Close()
}

func (s *CertificateStore) Get(ctx context.Context, serialNumber string) (*store.CertMetadata, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT serial_number, subject_dn, common_name, fingerprint, issued_at, expires_at
		FROM certificates
		WHERE serial_number = $1`, serialNumber)

	cert, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrCertNotFound
		}
		return nil, mapPostgresError(err, "failed to get certificate")
	}

	return cert, nil
}

func (s *CertificateStore) Register(ctx context.Context, cert *store.CertMetadata) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO certificates (serial_number, subject_dn, common_name, fingerprint, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		cert.SerialNumber, cert.SubjectDN, cert.CommonName, cert.Fingerprint, cert.IssuedAt, cert.ExpiresAt)
	if err != nil {
		return mapPostgresError(err, "failed to register certificate")
	}

	log.Debug().
		Str("serial_number", cert.SerialNumber).
		Str("fingerprint", cert.Fingerprint).
		Msg("certificate registered")

	return nil
}

// List returns certificates newest first.
func (s *CertificateStore) List(ctx context.Context, opts store.ListCertificatesOptions) ([]*store.CertMetadata, error) {
	query := `
		SELECT serial_number, subject_dn, common_name, fingerprint, issued_at, expires_at
		FROM certificates
		ORDER BY issued_at DESC, serial_number DESC`
	args := []any{}
	if opts.Limit > 0 {
		query += ` LIMIT $1`
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPostgresError(err, "failed to list certificates")
	}
	defer rows.Close()

	certs := make([]*store.CertMetadata, 0)
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, mapPostgresError(err, "failed to scan certificate")
		}
		certs = append(certs, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err, "failed to list certificates")
	}

	return certs, nil
}

func scanCertificate(row pgx.Row) (*store.CertMetadata, error) {
	var cert store.CertMetadata
	err := row.Scan(
		&cert.SerialNumber,
		&cert.SubjectDN,
		&cert.CommonName,
		&cert.Fingerprint,
		&cert.IssuedAt,
		&cert.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan certificate: %w", err)
	}

	cert.IssuedAt = cert.IssuedAt.UTC()
	cert.ExpiresAt = cert.ExpiresAt.UTC()

	return &cert, nil
}
