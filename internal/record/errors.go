package record

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeInvalidKey indicates a field name with reserved characters,
	// an empty name, or a name over the length limit.
	ErrCodeInvalidKey ErrorCode = "INVALID_KEY"

	// ErrCodeMalformedIndex indicates an array index token whose marker
	// and length prefixes are inconsistent.
	ErrCodeMalformedIndex ErrorCode = "MALFORMED_INDEX"

	// ErrCodeMalformedDocument indicates invalid JSON, trailing content,
	// duplicate keys, or a non-object update body.
	ErrCodeMalformedDocument ErrorCode = "MALFORMED_DOCUMENT"

	// ErrCodeUnsupportedQuery indicates the backend cannot run the query,
	// e.g. a regex scan without regex support.
	ErrCodeUnsupportedQuery ErrorCode = "UNSUPPORTED_QUERY"

	// ErrCodeStorageUnavailable indicates a connection, transaction or
	// statement failure in the backing database.
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// ErrCodeInvalidOption indicates a malformed get option.
	ErrCodeInvalidOption ErrorCode = "INVALID_OPTION"
)

// Error is the structured error returned by every package of the store.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Subject is the offending key, path or option value, if any.
	Subject string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Subject != "" {
		msg += fmt.Sprintf(" (%q)", e.Subject)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, so errors.Is(err, &Error{Code: c})
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Subject == ""
}

// NewInvalidKeyError creates an INVALID_KEY error for key.
func NewInvalidKeyError(key, message string) *Error {
	return &Error{Code: ErrCodeInvalidKey, Message: message, Subject: key}
}

// NewMalformedIndexError creates a MALFORMED_INDEX error for token.
func NewMalformedIndexError(token, message string) *Error {
	return &Error{Code: ErrCodeMalformedIndex, Message: message, Subject: token}
}

// NewMalformedDocumentError creates a MALFORMED_DOCUMENT error.
func NewMalformedDocumentError(message string, cause error) *Error {
	return &Error{Code: ErrCodeMalformedDocument, Message: message, Err: cause}
}

// NewUnsupportedQueryError creates an UNSUPPORTED_QUERY error.
func NewUnsupportedQueryError(message string) *Error {
	return &Error{Code: ErrCodeUnsupportedQuery, Message: message}
}

// NewStorageError creates a STORAGE_UNAVAILABLE error wrapping cause.
func NewStorageError(message string, cause error) *Error {
	return &Error{Code: ErrCodeStorageUnavailable, Message: message, Err: cause}
}

// NewInvalidOptionError creates an INVALID_OPTION error for value.
func NewInvalidOptionError(value, message string) *Error {
	return &Error{Code: ErrCodeInvalidOption, Message: message, Subject: value}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsInvalidKey reports whether err is an INVALID_KEY error.
func IsInvalidKey(err error) bool { return CodeOf(err) == ErrCodeInvalidKey }

// IsMalformedIndex reports whether err is a MALFORMED_INDEX error.
func IsMalformedIndex(err error) bool { return CodeOf(err) == ErrCodeMalformedIndex }

// IsMalformedDocument reports whether err is a MALFORMED_DOCUMENT error.
func IsMalformedDocument(err error) bool { return CodeOf(err) == ErrCodeMalformedDocument }

// IsUnsupportedQuery reports whether err is an UNSUPPORTED_QUERY error.
func IsUnsupportedQuery(err error) bool { return CodeOf(err) == ErrCodeUnsupportedQuery }

// IsStorageUnavailable reports whether err is a STORAGE_UNAVAILABLE error.
func IsStorageUnavailable(err error) bool { return CodeOf(err) == ErrCodeStorageUnavailable }

// IsInvalidOption reports whether err is an INVALID_OPTION error.
func IsInvalidOption(err error) bool { return CodeOf(err) == ErrCodeInvalidOption }
