package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/skip2/go-qrcode"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/entity"
)

const qrSize = 256

type sessionCoordinator interface {
	Create(ctx context.Context, creatorID string, visibility entity.Visibility) (*entity.Session, error)
	JoinByRef(ctx context.Context, ref, joinerID string) (*entity.Session, error)
	GetByRef(ctx context.Context, ref string) (*entity.Session, error)
	ListWaiting(ctx context.Context) ([]*entity.Session, error)
}

type createRequest struct {
	IsPublic bool `json:"isPublic"`
}

type createResponse struct {
	ID       string `json:"id"`
	GameCode string `json:"gameCode"`
	IsPublic bool   `json:"isPublic"`
}

type waitingItem struct {
	ID       string `json:"id"`
	GameCode string `json:"gameCode"`
	PlayerX  string `json:"playerX"`
	IsPublic bool   `json:"isPublic"`
}

type joinResponse struct {
	ID string `json:"id"`
	OK bool   `json:"ok"`
}

type sessionResponse struct {
	ID        string         `json:"id"`
	GameCode  string         `json:"gameCode"`
	IsPublic  bool           `json:"isPublic"`
	PlayerX   string         `json:"playerX"`
	PlayerO   string         `json:"playerO"`
	Status    entity.Status  `json:"status"`
	Board     entity.Board   `json:"board"`
	Turn      entity.Mark    `json:"turn"`
	Outcome   entity.Outcome `json:"outcome,omitempty"`
	WinLine   []int          `json:"winLine,omitempty"`
	UserRole  string         `json:"userRole"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type GameHandler interface {
	Create(ctx echo.Context) error
	ListWaiting(ctx echo.Context) error
	Join(ctx echo.Context) error
	JoinByCode(ctx echo.Context) error
	Get(ctx echo.Context) error
	JoinCodeQR(ctx echo.Context) error
}

type gameHandler struct {
	logger      *slog.Logger
	coordinator sessionCoordinator
}

func NewGame(logger *slog.Logger, coordinator sessionCoordinator) GameHandler {
	return &gameHandler{
		logger:      logger.With("handler", "game"),
		coordinator: coordinator,
	}
}

func (that *gameHandler) Create(ctx echo.Context) error {
	var req createRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	visibility := entity.PrivateVisibility
	if req.IsPublic {
		visibility = entity.PublicVisibility
	}

	session, err := that.coordinator.Create(ctx.Request().Context(), identityOf(ctx), visibility)
	if err != nil {
		that.logger.Error("failed to create session", "error", err)
		return fail(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, createResponse{
		ID:       session.ID,
		GameCode: session.JoinCode,
		IsPublic: session.IsPublic(),
	})
}

func (that *gameHandler) ListWaiting(ctx echo.Context) error {
	sessions, err := that.coordinator.ListWaiting(ctx.Request().Context())
	if err != nil {
		that.logger.Error("failed to list waiting sessions", "error", err)
		return fail(ctx, err)
	}

	items := make([]waitingItem, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, waitingItem{
			ID:       session.ID,
			GameCode: session.JoinCode,
			PlayerX:  session.PlayerX,
			IsPublic: session.IsPublic(),
		})
	}

	return ctx.JSON(http.StatusOK, items)
}

// Join accepts either a session id or a join code.
func (that *gameHandler) Join(ctx echo.Context) error {
	return that.join(ctx, ctx.Param("ref"))
}

func (that *gameHandler) JoinByCode(ctx echo.Context) error {
	return that.join(ctx, entity.NormalizeJoinCode(ctx.Param("code")))
}

func (that *gameHandler) join(ctx echo.Context, ref string) error {
	session, err := that.coordinator.JoinByRef(ctx.Request().Context(), ref, identityOf(ctx))
	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, joinResponse{ID: session.ID, OK: true})
}

func (that *gameHandler) Get(ctx echo.Context) error {
	session, err := that.coordinator.GetByRef(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return fail(ctx, err)
	}

	role := "none"
	if mark := session.RoleOf(identityOf(ctx)); mark != entity.EmptyCell {
		role = string(mark)
	}

	return ctx.JSON(http.StatusOK, sessionResponse{
		ID:        session.ID,
		GameCode:  session.JoinCode,
		IsPublic:  session.IsPublic(),
		PlayerX:   session.PlayerX,
		PlayerO:   session.PlayerO,
		Status:    session.Status,
		Board:     session.Board,
		Turn:      session.Turn,
		Outcome:   session.Outcome,
		WinLine:   session.WinLine,
		UserRole:  role,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	})
}

// JoinCodeQR renders the join code of an existing session as a PNG.
func (that *gameHandler) JoinCodeQR(ctx echo.Context) error {
	session, err := that.coordinator.GetByRef(ctx.Request().Context(), entity.NormalizeJoinCode(ctx.Param("code")))
	if err != nil {
		return fail(ctx, err)
	}

	png, err := qrcode.Encode(session.JoinCode, qrcode.Medium, qrSize)
	if err != nil {
		that.logger.Error("failed to encode qr code", "error", err)
		return fail(ctx, err)
	}

	ctx.Response().Header().Set("Cache-Control", "no-store")

	return ctx.Blob(http.StatusOK, "image/png", png)
}
