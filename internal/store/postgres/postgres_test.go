package postgres

import (
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/capki/internal/store"
)

func TestPoolConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := &PoolConfig{ConnString: "postgres://localhost/capki"}
		cfg.ApplyDefaults()

		require.Equal(t, int32(4), cfg.MaxConns)
		require.Equal(t, time.Hour, cfg.MaxConnLifetime)
		require.Equal(t, 10*time.Second, cfg.ConnectTimeout)
		require.NoError(t, cfg.Validate())
	})

	t.Run("missing connection string", func(t *testing.T) {
		cfg := &PoolConfig{}
		cfg.ApplyDefaults()
		require.Error(t, cfg.Validate())
	})

	t.Run("min above max", func(t *testing.T) {
		cfg := &PoolConfig{ConnString: "postgres://localhost/capki", MaxConns: 2, MinConns: 3}
		require.Error(t, cfg.Validate())
	})
}

func TestMapPostgresError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "unique violation",
			err:  &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "certificates_pkey"},
			want: store.ErrCertAlreadyExists,
		},
		{
			name: "connection failure",
			err:  &pgconn.PgError{Code: pgerrcode.ConnectionFailure},
			want: store.ErrStorage,
		},
		{
			name: "unknown postgres error",
			err:  &pgconn.PgError{Code: pgerrcode.UndefinedTable, Message: "relation does not exist"},
			want: store.ErrStorage,
		},
		{
			name: "non postgres error",
			err:  errors.New("dial tcp: refused"),
			want: store.ErrStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapPostgresError(tt.err, "failed")
			require.ErrorIs(t, err, tt.want)
		})
	}

	require.NoError(t, mapPostgresError(nil, "failed"))
}

func TestLoadMigrations(t *testing.T) {
	t.Run("embedded", func(t *testing.T) {
		migrations, err := loadMigrations(migrationsFS)
		require.NoError(t, err)
		require.NotEmpty(t, migrations)
		require.Equal(t, 1, migrations[0].version)
		require.Contains(t, migrations[0].content, "CREATE TABLE IF NOT EXISTS certificates")
	})

	t.Run("ordered by version and skips bad names", func(t *testing.T) {
		fsys := fstest.MapFS{
			"migrations/10_later.sql":  {Data: []byte("SELECT 10")},
			"migrations/2_second.sql":  {Data: []byte("SELECT 2")},
			"migrations/1_first.sql":   {Data: []byte("SELECT 1")},
			"migrations/notes.txt":     {Data: []byte("ignored")},
			"migrations/noversion.sql": {Data: []byte("ignored")},
			"migrations/x_bad.sql":     {Data: []byte("ignored")},
		}

		migrations, err := loadMigrations(fsys)
		require.NoError(t, err)
		require.Len(t, migrations, 3)
		require.Equal(t, []int{1, 2, 10}, []int{migrations[0].version, migrations[1].version, migrations[2].version})
	})
}
