package cmpkit

import "errors"

// Sentinel errors for metadata compilation and instance lifecycle.
var (
	ErrNotFound          = errors.New("cmpkit: component not found")
	ErrDependencyCycle   = errors.New("cmpkit: dependency cycle")
	ErrMissingDependency = errors.New("cmpkit: missing dependency")
	ErrClusterConflict   = errors.New("cmpkit: property declared in more than one cluster")
	ErrUnknownHook       = errors.New("cmpkit: unknown hook")
	ErrInvalidDecl       = errors.New("cmpkit: invalid declaration")
	ErrSealed            = errors.New("cmpkit: class already registered")
	ErrInitFailed        = errors.New("cmpkit: field initialization failed")
	ErrHookFailed        = errors.New("cmpkit: hook callback failed")
	ErrUnresolvedMethod  = errors.New("cmpkit: unresolved method reference")
	ErrNoRenderer        = errors.New("cmpkit: component has no render function")
	ErrInvalidProp       = errors.New("cmpkit: invalid prop")
	ErrReadOnly          = errors.New("cmpkit: property is read-only")
	ErrDestroyed         = errors.New("cmpkit: component destroyed")
	ErrDecryptFailed     = errors.New("cmpkit: state decryption failed")
	ErrSignatureInvalid  = errors.New("cmpkit: signature verification failed")
	ErrInvalidFormat     = errors.New("cmpkit: invalid state format")
)

// IsNotFound checks if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConfigError reports whether err is a configuration error. Configuration
// errors are raised while building metadata and are never recoverable for the
// affected class.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrDependencyCycle) ||
		errors.Is(err, ErrMissingDependency) ||
		errors.Is(err, ErrClusterConflict) ||
		errors.Is(err, ErrUnknownHook) ||
		errors.Is(err, ErrInvalidDecl) ||
		errors.Is(err, ErrSealed)
}

// IsDecryptionError checks if err is a decryption or signature error.
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrDecryptFailed) || errors.Is(err, ErrSignatureInvalid)
}

// IsInvalidProp checks if err is a prop validation error.
func IsInvalidProp(err error) bool {
	return errors.Is(err, ErrInvalidProp)
}
