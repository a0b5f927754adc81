package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// ErrStorage wraps any I/O, permission or remote API failure raised by a Backend.
var ErrStorage = errors.New("storage error")

// ErrFieldExists is returned by backends shared between processes when Store
// would replace a CA key that another writer has already persisted.
var ErrFieldExists = errors.New("field already set")

// Field names a value persisted in the CA record.
type Field string

const (
	// FieldKey holds the CA private key as PKCS#8 PEM.
	FieldKey Field = "caKey"
	// FieldCertificate holds the self-signed CA certificate as PEM.
	FieldCertificate Field = "caCert"
	// FieldSerialNumber holds the issuance counter as a decimal string.
	FieldSerialNumber Field = "serialNumber"
)

// Fields lists every field of the CA record in a stable order.
var Fields = []Field{FieldKey, FieldCertificate, FieldSerialNumber}

// CheckField returns an ErrStorage error when field is not one of Fields.
func CheckField(field Field) error {
	if !slices.Contains(Fields, field) {
		return fmt.Errorf("unknown field %q: %w", field, ErrStorage)
	}
	return nil
}

// Backend persists the CA record: key, certificate and serial counter.
//
// Missing fields are not errors, Load reports them with ok == false. Every other
// failure is wrapped in ErrStorage, except ErrFieldExists from Store.
type Backend interface {
	// Namespace identifies the CA record; allocations are serialized per namespace.
	Namespace() string

	// Init idempotently creates the underlying record if it does not exist.
	Init(ctx context.Context) error

	// Load returns the value of field, ok is false if the field is absent or empty.
	Load(ctx context.Context, field Field) (data []byte, ok bool, err error)

	// Store replaces the value of field without touching the other fields.
	Store(ctx context.Context, field Field, data []byte) error

	// NextSerial reads the counter (0 when absent), persists counter+1 and returns it.
	NextSerial(ctx context.Context) (int64, error)
}

// StorageError wraps err in ErrStorage with a message.
func StorageError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", msg, ErrStorage, err)
}

// ParseSerial decodes a persisted counter. Empty input is treated as zero.
func ParseSerial(data []byte) (int64, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0, nil
	}

	n, err := strconv.ParseInt(string(trimmed), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid serial counter %q: %w", trimmed, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid serial counter %d: must not be negative", n)
	}

	return n, nil
}

// FormatSerial encodes a counter for persistence.
func FormatSerial(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}
