package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/capki/internal/store"
)

// On-disk layout within the root directory:
//
//   <dir>/
//     ca.key          (0600) PKCS#8 PEM private key
//     ca.crt          (0644) PEM certificate
//     serialnumbers   (0644) decimal counter

const (
	keyFile    = "ca.key"
	certFile   = "ca.crt"
	serialFile = "serialnumbers"

	dirPerms  = 0700
	keyPerms  = 0600
	filePerms = 0644
)

// DefaultDir is the root directory used when none is configured.
const DefaultDir = "./ca"

var _ store.Backend = (*Backend)(nil)

// Backend stores the CA record as files in a directory.
type Backend struct {
	dir string
	mu  sync.Mutex // guards the counter file
}

// NewBackend creates a Backend rooted at dir. Nothing is touched until Init.
func NewBackend(dir string) *Backend {
	if dir == "" {
		dir = DefaultDir
	}
	return &Backend{dir: dir}
}

// Namespace is the absolute root directory, so two backends on the same path share a lock.
func (b *Backend) Namespace() string {
	abs, err := filepath.Abs(b.dir)
	if err != nil {
		return "local:" + b.dir
	}
	return "local:" + abs
}

// Init creates the root directory if it does not exist.
func (b *Backend) Init(ctx context.Context) error {
	if err := os.MkdirAll(b.dir, dirPerms); err != nil {
		return store.StorageError(err, "failed to create CA directory")
	}

	log.Debug().Str("dir", b.dir).Msg("initialized local CA storage")
	return nil
}

func (b *Backend) Load(ctx context.Context, field store.Field) ([]byte, bool, error) {
	path, err := b.path(field)
	if err != nil {
		return nil, false, err
	}

	log.Debug().Str("field", string(field)).Str("path", path).Msg("load field from local file")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, store.StorageError(err, fmt.Sprintf("failed to read %s", path))
	}

	if len(data) == 0 {
		return nil, false, nil
	}

	return data, true, nil
}

func (b *Backend) Store(ctx context.Context, field store.Field, data []byte) error {
	path, err := b.path(field)
	if err != nil {
		return err
	}

	log.Debug().Str("field", string(field)).Str("path", path).Msg("store field to local file")

	perms := os.FileMode(filePerms)
	if field == store.FieldKey {
		perms = keyPerms
	}

	if err := writeFileAtomic(path, data, perms); err != nil {
		return store.StorageError(err, fmt.Sprintf("failed to write %s", path))
	}

	return nil
}

func (b *Backend) NextSerial(ctx context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, _, err := b.Load(ctx, store.FieldSerialNumber)
	if err != nil {
		return 0, err
	}

	current, err := store.ParseSerial(data)
	if err != nil {
		return 0, store.StorageError(err, "failed to read serial counter")
	}

	next := current + 1
	if err := b.Store(ctx, store.FieldSerialNumber, store.FormatSerial(next)); err != nil {
		return 0, err
	}

	log.Debug().Int64("serial", next).Msg("fetched next serial")
	return next, nil
}

func (b *Backend) path(field store.Field) (string, error) {
	if err := store.CheckField(field); err != nil {
		return "", err
	}

	switch field {
	case store.FieldKey:
		return filepath.Join(b.dir, keyFile), nil
	case store.FieldCertificate:
		return filepath.Join(b.dir, certFile), nil
	default:
		return filepath.Join(b.dir, serialFile), nil
	}
}

// writeFileAtomic writes data to a temporary file in the same directory and
// renames it over path, so readers never observe a partially written file.
func writeFileAtomic(path string, data []byte, perms os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(perms); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return nil
}
