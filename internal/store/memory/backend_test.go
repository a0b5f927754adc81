package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/capki/internal/store"
)

func TestBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("missing field is absent", func(t *testing.T) {
		b := NewBackend("test")
		require.NoError(t, b.Init(ctx))

		data, ok, err := b.Load(ctx, store.FieldKey)
		require.NoError(t, err)
		require.False(t, ok)
		require.Nil(t, data)
	})

	t.Run("store then load", func(t *testing.T) {
		b := NewBackend("test")

		require.NoError(t, b.Store(ctx, store.FieldCertificate, []byte("pem")))

		data, ok, err := b.Load(ctx, store.FieldCertificate)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("pem"), data)
	})

	t.Run("serials start at one", func(t *testing.T) {
		b := NewBackend("test")

		first, err := b.NextSerial(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(1), first)

		second, err := b.NextSerial(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(2), second)

		data, ok, err := b.Load(ctx, store.FieldSerialNumber)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "2", string(data))
	})

	t.Run("corrupt counter is a storage error", func(t *testing.T) {
		b := NewBackend("test")
		require.NoError(t, b.Store(ctx, store.FieldSerialNumber, []byte("nope")))

		_, err := b.NextSerial(ctx)
		require.ErrorIs(t, err, store.ErrStorage)
	})
}

func TestBackend_UnknownField(t *testing.T) {
	ctx := context.Background()
	b := NewBackend("test")

	require.ErrorIs(t, b.Store(ctx, store.Field("other"), []byte("x")), store.ErrStorage)

	_, _, err := b.Load(ctx, store.Field("other"))
	require.ErrorIs(t, err, store.ErrStorage)
}
