package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/config"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/repository"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/service"
	"github.com/rocketscienceinc/tictactoe-realtime/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-realtime/transport/rest"
	"github.com/rocketscienceinc/tictactoe-realtime/transport/websocket"
)

const shutdownTimeout = 10 * time.Second

var (
	ErrAddrNotFound        = errors.New("redis address string is empty")
	ErrUnknownSessionStore = errors.New("unknown session store")
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionRepo, closeSessions, err := openSessionRepository(ctx, log, conf)
	if err != nil {
		return err
	}
	defer closeSessions()

	sqliteStorage, err := storage.NewSQLiteStorage(conf.SQLiteStoragePath)
	if err != nil {
		return fmt.Errorf("could not open sqlite storage: %w", err)
	}

	defer func() {
		if err = sqliteStorage.Close(); err != nil {
			log.Error("could not close sqlite storage", "error", err)
		}
	}()

	if err = sqliteStorage.Init(ctx); err != nil {
		return fmt.Errorf("could not init sqlite storage: %w", err)
	}

	userRepo := repository.NewUserRepository(sqliteStorage.Connection)
	authService := service.NewAuthService(conf.JWTSecretKey, conf.TokenTTL)
	userUseCase := usecase.NewUserUseCase(userRepo, authService)
	coordinator := usecase.NewSessionCoordinator(logger, sessionRepo, conf.StoreTimeout)

	restServer := rest.New(logger, conf, rest.Dependencies{
		Coordinator: coordinator,
		Users:       userUseCase,
		Verifier:    authService,
	})
	wsServer := websocket.New(logger, coordinator, authService, conf.AllowedOrigins)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := restServer.Start(conf.HTTPPort); httpErr != nil {
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := wsServer.Start(conf.SocketPort); wsErr != nil {
			wsErrCh <- wsErr
		}
	}()

	var runErr error

	select {
	case err = <-httpErrCh:
		runErr = fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		runErr = fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Received signal, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err = wsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("could not stop websocket server", "error", err)
	}

	if err = restServer.Shutdown(shutdownCtx); err != nil {
		log.Error("could not stop http server", "error", err)
	}

	return runErr
}

func openSessionRepository(
	ctx context.Context,
	log *slog.Logger,
	conf *config.Config,
) (repository.SessionRepository, func(), error) {
	switch conf.SessionStore {
	case config.SessionStoreMemory:
		log.Warn("sessions are kept in memory and will be lost on restart")
		return repository.NewInMemorySessionRepository(), func() {}, nil
	case config.SessionStoreRedis:
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownSessionStore, conf.SessionStore)
	}

	if conf.Redis.Host == "" {
		return nil, nil, ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, storage.RedisOptions{
		Addr:     conf.Redis.GetRedisAddr(),
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	closeFn := func() {
		if err := redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}

	return repository.NewSessionRepository(redisStorage), closeFn, nil
}
