package errors_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	svcErr "github.com/oggyb/agentmatch/internal/errors"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", svcErr.InvalidArgument("bad"), http.StatusBadRequest},
		{"not found", svcErr.NotFound("agent not found"), http.StatusNotFound},
		{"already swiped", svcErr.AlreadySwiped(), http.StatusConflict},
		{"match not active", svcErr.MatchNotActive(), http.StatusConflict},
		{"not participant", svcErr.NotParticipant(), http.StatusForbidden},
		{"rate limited", svcErr.RateLimited(time.Minute), http.StatusTooManyRequests},
		{"auth", svcErr.Unauthorized("nope"), http.StatusUnauthorized},
		{"gorm not found", gorm.ErrRecordNotFound, http.StatusNotFound},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"foreign", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("outer: %w", svcErr.AlreadySwiped()), http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, svcErr.HTTPStatus(tc.err))
		})
	}
}

func TestGRPCStatus(t *testing.T) {
	assert.Equal(t, codes.InvalidArgument, status.Code(svcErr.GRPCStatus(svcErr.InvalidArgument("x"))))
	assert.Equal(t, codes.AlreadyExists, status.Code(svcErr.GRPCStatus(svcErr.AlreadySwiped())))
	assert.Equal(t, codes.FailedPrecondition, status.Code(svcErr.GRPCStatus(svcErr.MatchNotActive())))
	assert.Equal(t, codes.PermissionDenied, status.Code(svcErr.GRPCStatus(svcErr.NotParticipant())))
	assert.Equal(t, codes.ResourceExhausted, status.Code(svcErr.GRPCStatus(svcErr.RateLimited(time.Second))))
	assert.Equal(t, codes.Unauthenticated, status.Code(svcErr.GRPCStatus(svcErr.Unauthorized("x"))))
	assert.Equal(t, codes.NotFound, status.Code(svcErr.GRPCStatus(gorm.ErrRecordNotFound)))
	assert.Equal(t, codes.Unavailable, status.Code(svcErr.GRPCStatus(errors.New("db down"))))
	assert.Nil(t, svcErr.GRPCStatus(nil))
}

func TestSentinelMatching(t *testing.T) {
	err := fmt.Errorf("swipe: %w", svcErr.AlreadySwiped())
	assert.ErrorIs(t, err, svcErr.ErrAlreadySwiped)
	assert.NotErrorIs(t, err, svcErr.ErrMatchNotActive)

	assert.Equal(t, svcErr.KindConflict, svcErr.KindOf(err))
	assert.Equal(t, svcErr.KindDependency, svcErr.KindOf(errors.New("x")))
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	e, ok := svcErr.As(svcErr.RateLimited(42 * time.Second))
	assert.True(t, ok)
	assert.Equal(t, 42*time.Second, e.RetryAfter)
}
