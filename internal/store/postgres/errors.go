package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfeidau/capki/internal/store"
)

// mapPostgresError maps PostgreSQL errors onto the store sentinels. Anything
// that is not a constraint violation is a storage failure.
func mapPostgresError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return store.StorageError(err, msg)
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("%s: %w: constraint %s", msg, store.ErrCertAlreadyExists, pgErr.ConstraintName)

	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return store.StorageError(fmt.Errorf("transaction conflict (retryable): %w", err), msg)

	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown:
		return store.StorageError(fmt.Errorf("database unavailable: %w", err), msg)

	case pgerrcode.QueryCanceled:
		return store.StorageError(fmt.Errorf("query canceled: %w", err), msg)

	default:
		return store.StorageError(fmt.Errorf("postgres error [%s]: %s (detail: %s): %w",
			pgErr.Code, pgErr.Message, pgErr.Detail, err), msg)
	}
}
