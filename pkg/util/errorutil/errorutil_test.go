package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"domain error passes through", NewInvalidFact("bad tier", nil), CodeInvalidFact, http.StatusUnprocessableEntity},
		{"wrapped domain error", fmt.Errorf("apply: %w", NewConflict("terminal", nil)), CodeConflict, http.StatusConflict},
		{"no rows", pgx.ErrNoRows, CodeNotFound, http.StatusNotFound},
		{"fiber bad request", fiber.NewError(http.StatusBadRequest, "invalid payload"), CodeValidation, http.StatusBadRequest},
		{"deadline", context.DeadlineExceeded, CodeTimeout, http.StatusGatewayTimeout},
		{"unknown", errors.New("disk on fire"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			de := ToDomainError(tc.err)
			assert.Equal(t, tc.code, de.Code)
			assert.Equal(t, tc.status, de.HTTPStatus)
		})
	}
	assert.Nil(t, ToDomainError(nil))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(NewInvalidFact("x", nil)))
	assert.True(t, IsPermanent(NewNotFound("user", nil)))
	assert.False(t, IsPermanent(NewInternalError(errors.New("db down"))))
	assert.False(t, IsPermanent(errors.New("plain")))
}
