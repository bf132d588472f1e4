// Package toolerr carries the error taxonomy from spec.md §7 end-to-end, from
// storage and coordinator failures through to the RPC response envelope.
package toolerr

import "fmt"

// Code is a machine-readable error code from the shared taxonomy.
type Code string

const (
	ValidationError     Code = "VALIDATION_ERROR"
	BlockNotFound        Code = "BLOCK_NOT_FOUND"
	VersionConflict      Code = "VERSION_CONFLICT"
	PatchParseError      Code = "PATCH_PARSE_ERROR"
	PatchApplyError      Code = "PATCH_APPLY_ERROR"
	PatchSizeLimitError  Code = "PATCH_SIZE_LIMIT_ERROR"
	LinkValidationError  Code = "LINK_VALIDATION_ERROR"
	DependenciesExist    Code = "DEPENDENCIES_EXIST"
	NamespaceNotFound    Code = "NAMESPACE_NOT_FOUND"
	PersistenceFailure   Code = "PERSISTENCE_FAILURE"
	ReIndexFailure       Code = "RE_INDEX_FAILURE"
	CommitFailed         Code = "COMMIT_FAILED"
	InternalError        Code = "INTERNAL_ERROR"
)

// Error is a typed error carrying a taxonomy code alongside a human message.
// It is the shape every component in the core returns instead of raising
// exceptions for control flow (spec.md §9 "Exceptions for control flow").
type Error struct {
	Code    Code
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds a tagged error with no wrapped cause.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a taxonomy code.
func Wrap(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Wrapped: err}
}

// As extracts a *Error from err, returning (nil, false) if err does not carry one.
func As(err error) (*Error, bool) {
	te, ok := err.(*Error)
	return te, ok
}

// CodeOf returns the taxonomy code of err, or InternalError if err is not a
// tagged *Error.
func CodeOf(err error) Code {
	if te, ok := As(err); ok {
		return te.Code
	}
	return InternalError
}
