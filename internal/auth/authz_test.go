package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharedSecret_Authorize(t *testing.T) {
	authz := NewSharedSecret("my-secret-key")

	tests := []struct {
		name       string
		credential string
		wantErr    bool
	}{
		{name: "missing credential", credential: "", wantErr: true},
		{name: "matching credential", credential: "my-secret-key", wantErr: false},
		{name: "wrong credential", credential: "wrong", wantErr: true},
		{name: "prefix of secret", credential: "my-secret", wantErr: true},
		{name: "bearer scheme is not stripped", credential: "Bearer my-secret-key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authz.Authorize(context.Background(), tt.credential)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrPermissionDenied)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewAuthorizer(t *testing.T) {
	t.Run("no secret allows everything", func(t *testing.T) {
		authz := NewAuthorizer("")
		require.IsType(t, AllowAll{}, authz)
		require.NoError(t, authz.Authorize(context.Background(), ""))
	})

	t.Run("secret enables shared secret check", func(t *testing.T) {
		authz := NewAuthorizer("s3cret")
		require.IsType(t, &SharedSecret{}, authz)
		require.ErrorIs(t, authz.Authorize(context.Background(), ""), ErrPermissionDenied)
		require.NoError(t, authz.Authorize(context.Background(), "s3cret"))
	})
}
