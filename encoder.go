package cmpkit

import (
	"errors"

	"github.com/pthm/cmpkit/lib/encoding"
)

// Encoder is an alias for encoding.Encoder for convenience.
type Encoder = encoding.Encoder

// NewEncoder creates a new state encoder with the given key.
func NewEncoder(key []byte) (*Encoder, error) {
	return encoding.NewEncoder(key)
}

// Clone returns a structural copy of v.
func Clone(v any) any {
	return encoding.Clone(v)
}

// WrapDecodeError maps encoding package errors to cmpkit sentinel errors.
func WrapDecodeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, encoding.ErrInvalidFormat) {
		return errors.Join(ErrInvalidFormat, err)
	}
	if errors.Is(err, encoding.ErrSignatureInvalid) {
		return errors.Join(ErrSignatureInvalid, err)
	}
	if errors.Is(err, encoding.ErrDecryptFailed) {
		return errors.Join(ErrDecryptFailed, err)
	}
	return err
}
