package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

type userUseCase interface {
	Register(ctx context.Context, username, password string) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	LoginWithEmail(ctx context.Context, email string) (string, error)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type AuthHandler interface {
	Register(ctx echo.Context) error
	Login(ctx echo.Context) error
}

type authHandler struct {
	logger *slog.Logger
	user   userUseCase
}

func NewAuth(logger *slog.Logger, user userUseCase) AuthHandler {
	return &authHandler{
		logger: logger.With("handler", "auth"),
		user:   user,
	}
}

func (that *authHandler) Register(ctx echo.Context) error {
	log := that.logger.With("method", "Register")

	var req credentialsRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	token, err := that.user.Register(ctx.Request().Context(), req.Username, req.Password)
	if err != nil {
		log.Info("registration refused", "username", req.Username, "error", err)
		return fail(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, tokenResponse{Token: token})
}

func (that *authHandler) Login(ctx echo.Context) error {
	log := that.logger.With("method", "Login")

	var req credentialsRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	token, err := that.user.Login(ctx.Request().Context(), req.Username, req.Password)
	if err != nil {
		log.Info("login refused", "username", req.Username, "error", err)
		return fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, tokenResponse{Token: token})
}
