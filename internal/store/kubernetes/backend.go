package kubernetes

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/capki/internal/store"
	"github.com/wolfeidau/capki/internal/telemetry"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	// ControlledByAnnotation marks secrets created by this service.
	ControlledByAnnotation = "controlled-by"
	ControlledByValue      = "capki"

	// DefaultSecretName is used when no secret name is configured.
	DefaultSecretName = "capki-ca"

	defaultMaxConflictRetries = 10
)

var _ store.Backend = (*Backend)(nil)

// Backend stores the CA record as keys of a single Secret. Every write reads
// the whole Secret and replaces it, relying on the resourceVersion precondition
// to detect concurrent writers.
type Backend struct {
	client    kubernetes.Interface
	namespace string
	name      string

	maxRetries      uint
	initialInterval time.Duration
}

// Option configures a Backend.
type Option func(*Backend)

// WithConflictRetries sets how many times a replace is attempted when the
// Secret changed underneath it.
func WithConflictRetries(n uint) Option {
	return func(b *Backend) {
		b.maxRetries = n
	}
}

// WithRetryInterval sets the initial wait between conflicting replaces.
func WithRetryInterval(d time.Duration) Option {
	return func(b *Backend) {
		b.initialInterval = d
	}
}

func NewBackend(client kubernetes.Interface, namespace, name string, opts ...Option) *Backend {
	if name == "" {
		name = DefaultSecretName
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	b := &Backend{
		client:          client,
		namespace:       namespace,
		name:            name,
		maxRetries:      defaultMaxConflictRetries,
		initialInterval: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Namespace() string {
	return "kubernetes:" + b.namespace + "/" + b.name
}

// Init creates the Secret with empty fields and a zero counter if it does not exist.
func (b *Backend) Init(ctx context.Context) error {
	_, err := b.client.CoreV1().Secrets(b.namespace).Get(ctx, b.name, metav1.GetOptions{})
	if err == nil {
		log.Debug().Str("namespace", b.namespace).Str("secret", b.name).Msg("kubernetes secret exists")
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return store.StorageError(err, fmt.Sprintf("failed to get secret %s/%s", b.namespace, b.name))
	}

	log.Info().Str("namespace", b.namespace).Str("secret", b.name).Msg("kubernetes secret does not exist, creating it")

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      b.name,
			Namespace: b.namespace,
			Annotations: map[string]string{
				ControlledByAnnotation: ControlledByValue,
			},
		},
		Type: corev1.SecretTypeOpaque,
		Data: map[string][]byte{
			string(store.FieldKey):          {},
			string(store.FieldCertificate):  {},
			string(store.FieldSerialNumber): store.FormatSerial(0),
		},
	}

	_, err = b.client.CoreV1().Secrets(b.namespace).Create(ctx, secret, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return store.StorageError(err, fmt.Sprintf("failed to create secret %s/%s", b.namespace, b.name))
	}

	return nil
}

func (b *Backend) Load(ctx context.Context, field store.Field) ([]byte, bool, error) {
	if err := store.CheckField(field); err != nil {
		return nil, false, err
	}

	log.Debug().Str("field", string(field)).Str("secret", b.name).Msg("load field from kubernetes secret")

	secret, err := b.client.CoreV1().Secrets(b.namespace).Get(ctx, b.name, metav1.GetOptions{})
	if err != nil {
		return nil, false, store.StorageError(err, fmt.Sprintf("failed to get secret %s/%s", b.namespace, b.name))
	}

	data, ok := secretValue(secret, field)
	if !ok {
		return nil, false, nil
	}

	return data, true, nil
}

// Store replaces field in the Secret. The CA key is write-once: replacing a
// different stored key fails with store.ErrFieldExists, so a replica that lost
// a bootstrap race never serves a key the Secret no longer holds.
func (b *Backend) Store(ctx context.Context, field store.Field, data []byte) error {
	if err := store.CheckField(field); err != nil {
		return err
	}

	log.Debug().Str("field", string(field)).Str("secret", b.name).Msg("store field to kubernetes secret")

	_, err := b.update(ctx, func(secret *corev1.Secret) (int64, error) {
		if field == store.FieldKey {
			if current, ok := secretValue(secret, field); ok && !bytes.Equal(current, data) {
				return 0, fmt.Errorf("secret %s/%s: %w: %s", b.namespace, b.name, store.ErrFieldExists, field)
			}
		}
		secret.Data[string(field)] = append([]byte(nil), data...)
		return 0, nil
	})
	return err
}

// NextSerial increments the counter inside a single read-modify-replace, so
// writers in other processes are serialized by the API server.
func (b *Backend) NextSerial(ctx context.Context) (int64, error) {
	next, err := b.update(ctx, func(secret *corev1.Secret) (int64, error) {
		data, _ := secretValue(secret, store.FieldSerialNumber)

		current, err := store.ParseSerial(data)
		if err != nil {
			return 0, store.StorageError(err, "failed to read serial counter")
		}

		next := current + 1
		secret.Data[string(store.FieldSerialNumber)] = store.FormatSerial(next)
		return next, nil
	})
	if err != nil {
		return 0, err
	}

	log.Debug().Int64("serial", next).Msg("fetched next serial")
	return next, nil
}

// update fetches the Secret, applies mutate and replaces it, retrying when the
// replace loses a race with another writer.
func (b *Backend) update(ctx context.Context, mutate func(*corev1.Secret) (int64, error)) (int64, error) {
	secrets := b.client.CoreV1().Secrets(b.namespace)

	operation := func() (int64, error) {
		secret, err := secrets.Get(ctx, b.name, metav1.GetOptions{})
		if err != nil {
			return 0, backoff.Permanent(store.StorageError(err, fmt.Sprintf("failed to get secret %s/%s", b.namespace, b.name)))
		}

		secret = secret.DeepCopy()
		if secret.Data == nil {
			secret.Data = map[string][]byte{}
		}

		result, err := mutate(secret)
		if err != nil {
			return 0, backoff.Permanent(err)
		}

		_, err = secrets.Update(ctx, secret, metav1.UpdateOptions{})
		if err != nil {
			if apierrors.IsConflict(err) {
				telemetry.GetMetrics().SecretConflictsTotal.Add(ctx, 1)
				log.Debug().Str("secret", b.name).Msg("secret changed during update, retrying")
				return 0, err
			}
			return 0, backoff.Permanent(store.StorageError(err, fmt.Sprintf("failed to update secret %s/%s", b.namespace, b.name)))
		}

		return result, nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = b.initialInterval

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(b.maxRetries),
	)
	if err != nil {
		if apierrors.IsConflict(err) {
			return 0, store.StorageError(err, fmt.Sprintf("secret %s/%s kept changing during update", b.namespace, b.name))
		}
		return 0, err
	}

	return result, nil
}

// secretValue reads a field from Data, or from StringData for secrets that
// were written by hand and not yet normalized by the API server.
func secretValue(secret *corev1.Secret, field store.Field) ([]byte, bool) {
	if v, ok := secret.Data[string(field)]; ok && len(v) > 0 {
		return v, true
	}
	if v, ok := secret.StringData[string(field)]; ok && v != "" {
		return []byte(v), true
	}
	return nil, false
}
