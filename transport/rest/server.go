package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/config"
)

const identityKey = "identity"

type Server struct {
	logger *slog.Logger
	echo   *echo.Echo
}

type Dependencies struct {
	Coordinator sessionCoordinator
	Users       userUseCase
	Verifier    tokenVerifier
}

func New(logger *slog.Logger, conf *config.Config, deps Dependencies) *Server {
	logger = logger.With("component", "rest")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     conf.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	e.GET("/ping", NewPingHandler().Ping)

	authHandler := NewAuth(logger, deps.Users)
	authGroup := e.Group("/api/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	if conf.GoogleOAuth.Enabled() {
		googleHandler := NewGoogleAuth(logger, &conf.GoogleOAuth, deps.Users)

		oauthGroup := authGroup.Group("/google", session.Middleware(sessions.NewCookieStore([]byte(conf.SessionSecret))))
		oauthGroup.GET("/login", googleHandler.GoogleLogin)
		oauthGroup.GET("/callback", googleHandler.GoogleCallback)
	}

	gameHandler := NewGame(logger, deps.Coordinator)
	e.GET("/api/game/code/:code/qr", gameHandler.JoinCodeQR)

	gameGroup := e.Group("/api/game", requireIdentity(deps.Verifier))
	gameGroup.POST("/create", gameHandler.Create)
	gameGroup.GET("/waiting", gameHandler.ListWaiting)
	gameGroup.POST("/join/:ref", gameHandler.Join)
	gameGroup.POST("/join-code/:code", gameHandler.JoinByCode)
	gameGroup.GET("/:id", gameHandler.Get)

	return &Server{
		logger: logger,
		echo:   e,
	}
}

func (that *Server) Handler() http.Handler {
	return that.echo
}

func (that *Server) Start(port string) error {
	that.echo.Server.ReadHeaderTimeout = 10 * time.Second
	that.echo.Server.IdleTimeout = 30 * time.Second

	if err := that.echo.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) Shutdown(ctx context.Context) error {
	if err := that.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}

	return nil
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				logger.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}

			logger.Debug("request", attrs...)
			return nil
		},
	})
}
