package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/styledecor/internal/repository"
)

// Kind is the categorical outcome of a failed operation.  Handlers map it
// onto HTTP status codes; the kind, not the code, is the contract.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindPermissionDenied
	KindInvalidArgument
	KindNotFound
	KindConflict
	KindAlreadyExists
	KindFailedPrecondition
	KindNoChange
)

var kindNames = map[Kind]string{
	KindInternal:           "internal",
	KindUnauthenticated:    "unauthenticated",
	KindForbidden:          "forbidden",
	KindPermissionDenied:   "permission_denied",
	KindInvalidArgument:    "invalid_argument",
	KindNotFound:           "not_found",
	KindConflict:           "conflict",
	KindAlreadyExists:      "already_exists",
	KindFailedPrecondition: "failed_precondition",
	KindNoChange:           "no_change",
}

func (k Kind) String() string { return kindNames[k] }

// Error is returned by every engine operation.  Partial is set when a
// two-step write failed after its first step had already been applied.
type Error struct {
	Kind    Kind
	Msg     string
	Err     error
	Partial bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind carried by err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsPartial reports whether err marks a half-applied two-step write.
func IsPartial(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Partial
}

// Message is the caller-facing text of err.  Internal errors never leak
// their cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}

func newError(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func invalid(msg string) *Error  { return newError(KindInvalidArgument, msg) }
func notFound(msg string) *Error { return newError(KindNotFound, msg) }

func internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// fromStore translates a store sentinel into a kind.  Unknown errors become
// Internal.
func fromStore(err error, what string) *Error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Kind: KindNotFound, Msg: what + " not found", Err: err}
	case errors.Is(err, repository.ErrNoChange):
		return &Error{Kind: KindNoChange, Msg: what + " not modified", Err: err}
	case errors.Is(err, repository.ErrDuplicate):
		return &Error{Kind: KindAlreadyExists, Msg: what + " already exists", Err: err}
	default:
		return internal("store failure", err)
	}
}

// partial marks err as the failed second step of a two-step write.
func partial(err *Error) *Error {
	err.Partial = true
	return err
}
