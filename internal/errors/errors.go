// Package errors defines the error taxonomy shared by services and transports.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for transport mapping and retry decisions.
type Kind int

const (
	KindDependency Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
	KindRateLimited
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	case KindAuth:
		return "auth"
	default:
		return "dependency"
	}
}

// Stable codes surfaced to clients.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadySwiped   = "ALREADY_SWIPED"
	CodeMatchNotActive  = "MATCH_NOT_ACTIVE"
	CodeNotParticipant  = "NOT_PARTICIPANT"
	CodeNameTaken       = "NAME_TAKEN"
	CodeRateLimited     = "RATE_LIMITED"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeDependency      = "DEPENDENCY_FAILURE"
	CodeTimeout         = "TIMEOUT"
	CodeCanceled        = "CANCELED"
)

// Error is the single error type returned by the service layer.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on Kind and Code so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks in callers and tests.
var (
	ErrAlreadySwiped  = &Error{Kind: KindConflict, Code: CodeAlreadySwiped}
	ErrMatchNotActive = &Error{Kind: KindConflict, Code: CodeMatchNotActive}
	ErrNotParticipant = &Error{Kind: KindForbidden, Code: CodeNotParticipant}
	ErrNameTaken      = &Error{Kind: KindConflict, Code: CodeNameTaken}
)

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// InvalidArgument creates a validation error.
// Use this in service layer for bad input validation.
func InvalidArgument(msg string) error {
	return newErr(KindValidation, CodeInvalidArgument, msg)
}

// NotFound creates a not-found error for the named entity.
func NotFound(msg string) error {
	return newErr(KindNotFound, CodeNotFound, msg)
}

// AlreadyExists creates a conflict error with a specific code.
func AlreadyExists(code, msg string) error {
	return newErr(KindConflict, code, msg)
}

func AlreadySwiped() error {
	return newErr(KindConflict, CodeAlreadySwiped, "already swiped on this agent")
}

func MatchNotActive() error {
	return newErr(KindConflict, CodeMatchNotActive, "match is not active")
}

func NotParticipant() error {
	return newErr(KindForbidden, CodeNotParticipant, "you are not part of this match")
}

func Forbidden(msg string) error {
	return newErr(KindForbidden, CodeNotParticipant, msg)
}

func Unauthorized(msg string) error {
	return newErr(KindAuth, CodeUnauthorized, msg)
}

// RateLimited carries the duration the caller should wait before retrying.
func RateLimited(retryAfter time.Duration) error {
	e := newErr(KindRateLimited, CodeRateLimited, "too many requests")
	e.RetryAfter = retryAfter
	return e
}

// Dependency wraps a storage or collaborator failure.
func Dependency(msg string, cause error) error {
	e := newErr(KindDependency, CodeDependency, msg)
	e.Cause = cause
	return e
}

// WithCode overrides the code of a service error, keeping its kind.
func WithCode(err error, kind Kind, code string) error {
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.Kind = kind
		cp.Code = code
		return &cp
	}
	return err
}

// KindOf reports the kind of err, defaulting to dependency for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDependency
}

// As unwraps err into *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
