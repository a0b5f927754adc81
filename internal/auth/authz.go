package auth

import (
	"context"
	"crypto/subtle"
	"errors"
)

// ErrPermissionDenied is returned when a credential is missing or does not match.
var ErrPermissionDenied = errors.New("permission denied")

// Authorizer decides whether a caller presenting credential may use the CA.
type Authorizer interface {
	Authorize(ctx context.Context, credential string) error
}

// NewAuthorizer returns a SharedSecret check when secret is set, otherwise AllowAll.
func NewAuthorizer(secret string) Authorizer {
	if secret == "" {
		return AllowAll{}
	}
	return NewSharedSecret(secret)
}

// AllowAll accepts every call.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, string) error {
	return nil
}

// SharedSecret requires the credential to equal a configured secret.
type SharedSecret struct {
	secret []byte
}

func NewSharedSecret(secret string) *SharedSecret {
	return &SharedSecret{secret: []byte(secret)}
}

func (s *SharedSecret) Authorize(_ context.Context, credential string) error {
	if credential == "" {
		return errors.Join(ErrPermissionDenied, errors.New("missing credential"))
	}

	if subtle.ConstantTimeCompare([]byte(credential), s.secret) != 1 {
		return errors.Join(ErrPermissionDenied, errors.New("credential does not match"))
	}

	return nil
}
