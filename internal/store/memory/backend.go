package memory

import (
	"context"
	"sync"

	"github.com/wolfeidau/capki/internal/store"
)

var _ store.Backend = (*Backend)(nil)

// Backend is an in-memory CA record for development and testing.
// Nothing survives a restart.
type Backend struct {
	mu        sync.Mutex
	namespace string
	fields    map[store.Field][]byte
}

// NewBackend creates an empty in-memory record identified by namespace.
func NewBackend(namespace string) *Backend {
	return &Backend{
		namespace: namespace,
		fields:    make(map[store.Field][]byte),
	}
}

func (b *Backend) Namespace() string {
	return "memory:" + b.namespace
}

// Init is a no-op; the record exists as soon as the backend does.
func (b *Backend) Init(ctx context.Context) error {
	return nil
}

func (b *Backend) Load(ctx context.Context, field store.Field) ([]byte, bool, error) {
	if err := store.CheckField(field); err != nil {
		return nil, false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.fields[field]
	if !ok || len(data) == 0 {
		return nil, false, nil
	}

	return append([]byte(nil), data...), true, nil
}

func (b *Backend) Store(ctx context.Context, field store.Field, data []byte) error {
	if err := store.CheckField(field); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.fields[field] = append([]byte(nil), data...)
	return nil
}

func (b *Backend) NextSerial(ctx context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := store.ParseSerial(b.fields[store.FieldSerialNumber])
	if err != nil {
		return 0, store.StorageError(err, "failed to read serial counter")
	}

	next := current + 1
	b.fields[store.FieldSerialNumber] = store.FormatSerial(next)

	return next, nil
}
