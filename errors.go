package voucher

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying every failure mode of key loading and PEM
// extraction. Callers use errors.Is against these to decide on a remedy
// (fix the path, supply a password, fix the file, fix the password).
var (
	// ErrInvalidArgument indicates a nil, empty, or whitespace-only input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates the key file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedFormat indicates a non-PEM container (PFX/P12) or a
	// document with no recognizable PEM key header.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrAccessDenied indicates the key file exists but could not be read.
	ErrAccessDenied = errors.New("access denied")

	// ErrPasswordRequired indicates an encrypted PKCS#8 key was detected
	// but no password was supplied.
	ErrPasswordRequired = errors.New("password required")

	// ErrMalformedPEM indicates a missing or misordered BEGIN/END marker
	// pair, or a payload that is not valid base64.
	ErrMalformedPEM = errors.New("malformed PEM")

	// ErrCryptoImport indicates the PEM container was intact but the DER
	// structure inside it failed to parse or decrypt. Deliberately distinct
	// from ErrMalformedPEM: the remedies differ (fix the password or the
	// key material vs. fix the file).
	ErrCryptoImport = errors.New("crypto import failed")
)

// KeyError is a classified key-loading failure. Kind is always one of the
// sentinel errors above, so errors.Is(err, ErrX) works through the wrapper.
type KeyError struct {
	// Op identifies the operation that failed (e.g., "LoadPrivateKey").
	Op string

	// Kind is the sentinel error categorizing this failure.
	Kind error

	// Msg is the human-readable description.
	Msg string

	// Err is the wrapped underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// Unwrap returns the underlying cause so errors.Is and errors.As can walk
// the chain.
func (e *KeyError) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches target, checking both the Kind
// classification and the wrapped cause.
func (e *KeyError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return false
}

// keyErr builds a KeyError without an underlying cause.
func keyErr(op string, kind error, format string, args ...any) *KeyError {
	return &KeyError{Op: op, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// keyErrWrap builds a KeyError wrapping an underlying cause.
func keyErrWrap(op string, kind error, err error, format string, args ...any) *KeyError {
	return &KeyError{Op: op, Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}
