package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/apperror"
)

type tokenVerifier interface {
	Verify(token string) (string, error)
}

type errorResponse struct {
	Error   apperror.Reason `json:"error"`
	Message string          `json:"message,omitempty"`
}

// requireIdentity verifies the bearer token and stores the user id under identityKey.
func requireIdentity(verifier tokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return fail(ctx, apperror.ErrInvalidToken)
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				return fail(ctx, err)
			}

			ctx.Set(identityKey, identity)

			return next(ctx)
		}
	}
}

func identityOf(ctx echo.Context) string {
	identity, _ := ctx.Get(identityKey).(string)
	return identity
}

var statuses = []struct {
	err    error
	status int
}{
	{apperror.ErrNotFound, http.StatusNotFound},
	{apperror.ErrUserNotFound, http.StatusNotFound},
	{apperror.ErrSessionFull, http.StatusConflict},
	{apperror.ErrUserExists, http.StatusConflict},
	{apperror.ErrGameFinished, http.StatusConflict},
	{apperror.ErrNotParticipant, http.StatusForbidden},
	{apperror.ErrInvalidToken, http.StatusUnauthorized},
	{apperror.ErrInvalidCredentials, http.StatusUnauthorized},
}

func statusOf(err error) int {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}

	if apperror.IsRejection(err) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// fail writes err as a JSON error body. Infrastructure details never reach the client.
func fail(ctx echo.Context, err error) error {
	status := statusOf(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = http.StatusText(status)
	}

	return ctx.JSON(status, errorResponse{
		Error:   apperror.ReasonOf(err),
		Message: message,
	})
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, errorResponse{
		Error:   apperror.ReasonBadRequest,
		Message: message,
	})
}
