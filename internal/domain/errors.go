package domain

import (
	"errors"
	"strings"
)

// Kind classifies failures so the transport layer can map them to statuses.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindNotAuthorized
	KindMovieNotFound
	KindResourceNotFound
	KindAlreadyExists
	KindValidationFailed
	KindTransactionAborted
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotAuthorized:
		return "not authorized"
	case KindMovieNotFound:
		return "movie not found"
	case KindResourceNotFound:
		return "resource not found"
	case KindAlreadyExists:
		return "already exists"
	case KindValidationFailed:
		return "validation failed"
	case KindTransactionAborted:
		return "transaction aborted"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks; only the Kind is compared.
var (
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrNotAuthorized      = &Error{Kind: KindNotAuthorized}
	ErrMovieNotFound      = &Error{Kind: KindMovieNotFound}
	ErrResourceNotFound   = &Error{Kind: KindResourceNotFound}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrValidationFailed   = &Error{Kind: KindValidationFailed}
	ErrTransactionAborted = &Error{Kind: KindTransactionAborted}
)

// Error is the failure type returned by the core services.
type Error struct {
	Kind     Kind
	Op       string
	Resource string
	Err      error
}

// E builds an *Error.
func E(kind Kind, op, resource string, err error) *Error {
	return &Error{Kind: kind, Op: op, Resource: resource, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Resource != "" {
		b.WriteString(" (")
		b.WriteString(e.Resource)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
