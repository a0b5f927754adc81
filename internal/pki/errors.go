package pki

import (
	"errors"
	"fmt"
)

var (
	// ErrParse marks malformed caller input such as a broken PEM block or CSR.
	ErrParse = errors.New("parse error")

	// ErrCrypto marks key generation, signing or encoding failures.
	ErrCrypto = errors.New("crypto error")
)

func parseError(msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", msg, ErrParse)
	}
	return fmt.Errorf("%s: %w: %w", msg, ErrParse, err)
}

func cryptoError(msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", msg, ErrCrypto)
	}
	return fmt.Errorf("%s: %w: %w", msg, ErrCrypto, err)
}
