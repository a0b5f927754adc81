package pki

import (
	"context"
	"sync"

	"github.com/wolfeidau/capki/internal/store"
	"github.com/wolfeidau/capki/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// namespaceLocks holds one mutex per backend namespace, shared by every
// allocator in the process that points at the same record.
var namespaceLocks sync.Map

func namespaceLock(namespace string) *sync.Mutex {
	mu, _ := namespaceLocks.LoadOrStore(namespace, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// SerialAllocator hands out serial numbers from the backend counter. The
// read-increment-persist sequence runs under the namespace lock; reads of
// other fields are not blocked.
type SerialAllocator struct {
	backend store.Backend
	mu      *sync.Mutex
}

func NewSerialAllocator(backend store.Backend) *SerialAllocator {
	return &SerialAllocator{
		backend: backend,
		mu:      namespaceLock(backend.Namespace()),
	}
}

// Next returns the next serial. Values start at 1, never repeat, and may be
// sparse when a caller abandons an issuance after allocation.
func (a *SerialAllocator) Next(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	serial, err := a.backend.NextSerial(ctx)
	if err != nil {
		return 0, err
	}

	telemetry.GetMetrics().SerialAllocationsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("namespace", a.backend.Namespace())))

	return serial, nil
}
