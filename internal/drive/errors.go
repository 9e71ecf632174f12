package drive

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrorKind classifies failures so callers can decide how to report them
// without parsing messages.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindAuthorization
	KindStorageIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not found"
	case KindAuthorization:
		return "authorization"
	case KindStorageIO:
		return "storage io"
	default:
		return "internal"
	}
}

// Error is the typed error returned by the stores, the service and the gate.
type Error struct {
	Kind    ErrorKind
	Op      string // operation that failed, e.g. "rename"
	Message string
	Path    string // storage path involved, if any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindConflict})
// works through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == ""
}

func newError(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// ValidationError reports input that must be corrected by the caller.
func ValidationError(op, format string, args ...any) *Error {
	return newError(KindValidation, op, format, args...)
}

// ConflictError reports a request that collides with existing state.
func ConflictError(op, format string, args ...any) *Error {
	return newError(KindConflict, op, format, args...)
}

// NotFoundError reports a missing node, role, permission or user.
func NotFoundError(op, format string, args ...any) *Error {
	return newError(KindNotFound, op, format, args...)
}

// AuthorizationError reports a missing capability or rejected credential.
func AuthorizationError(op, format string, args ...any) *Error {
	return newError(KindAuthorization, op, format, args...)
}

// StorageError wraps a byte store failure on path. Missing entries map to
// KindNotFound and a kind already set by the store is kept; everything else,
// including OS permission denials, is KindStorageIO with the OS error kept in
// the chain.
func StorageError(op, path string, err error) *Error {
	kind := KindStorageIO
	if errors.Is(err, fs.ErrNotExist) {
		kind = KindNotFound
	} else if k := KindOf(err); k != KindInternal {
		kind = k
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
