// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Map converts repo/infra errors into service errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return newErr(KindNotFound, CodeNotFound, "record not found")

	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindDependency, Code: CodeTimeout, Message: "request timed out", Cause: err}

	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindDependency, Code: CodeCanceled, Message: "request was canceled", Cause: err}

	default:
		return Dependency("storage failure", err)
	}
}

// HTTPStatus picks the response status for err.
func HTTPStatus(err error) int {
	e, ok := As(Map(err))
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindAuth:
		return http.StatusUnauthorized
	}
	switch e.Code {
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeCanceled:
		return 499
	}
	return http.StatusInternalServerError
}

// GRPCStatus converts err into a gRPC status error.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	e, _ := As(Map(err))
	msg := e.Message
	switch e.Kind {
	case KindValidation:
		return status.Error(codes.InvalidArgument, msg)
	case KindNotFound:
		return status.Error(codes.NotFound, msg)
	case KindConflict:
		if e.Code == CodeMatchNotActive {
			return status.Error(codes.FailedPrecondition, msg)
		}
		return status.Error(codes.AlreadyExists, msg)
	case KindForbidden:
		return status.Error(codes.PermissionDenied, msg)
	case KindRateLimited:
		return status.Error(codes.ResourceExhausted, msg)
	case KindAuth:
		return status.Error(codes.Unauthenticated, msg)
	}

	switch e.Code {
	case CodeTimeout:
		return status.Error(codes.DeadlineExceeded, msg)
	case CodeCanceled:
		return status.Error(codes.Canceled, msg)
	}
	return status.Error(codes.Unavailable, e.Error())
}
