package rest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/config"
)

const (
	urlUserInfo      = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthSessionName = "session"
	oauthStateKey    = "state"
)

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
}

type GoogleAuthHandler interface {
	GoogleLogin(ctx echo.Context) error
	GoogleCallback(ctx echo.Context) error
}

type googleAuthHandler struct {
	logger *slog.Logger

	oauthConfig *oauth2.Config
	userInfoURL string

	user userUseCase
}

func NewGoogleAuth(logger *slog.Logger, conf *config.GoogleOAuth, user userUseCase) GoogleAuthHandler {
	oauthConfig := &oauth2.Config{
		ClientID:     conf.ClientID,
		ClientSecret: conf.ClientSecret,

		RedirectURL: conf.RedirectURL,

		Scopes:   conf.Scopes,
		Endpoint: google.Endpoint,
	}

	return &googleAuthHandler{
		logger:      logger.With("handler", "google-auth"),
		oauthConfig: oauthConfig,
		userInfoURL: urlUserInfo,
		user:        user,
	}
}

func (that *googleAuthHandler) GoogleLogin(ctx echo.Context) error {
	log := that.logger.With("method", "GoogleLogin")

	stateToken, err := that.saveState(ctx)
	if err != nil {
		log.Error("Failed to generate state token", "error", err)
		return ctx.String(http.StatusInternalServerError, "Internal Server Error")
	}

	// generate authURL for authorization with session token.
	authURL := that.oauthConfig.AuthCodeURL(stateToken)
	return ctx.Redirect(http.StatusTemporaryRedirect, authURL)
}

// saveState keeps a fresh anti-forgery token in the cookie session.
func (that *googleAuthHandler) saveState(ctx echo.Context) (string, error) {
	userSession, err := session.Get(oauthSessionName, ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get session: %w", err)
	}

	state := uuid.NewString()

	userSession.Options = &sessions.Options{
		Path:     "/api/auth/google",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	userSession.Values[oauthStateKey] = state

	if err = userSession.Save(ctx.Request(), ctx.Response()); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	return state, nil
}

func (that *googleAuthHandler) GoogleCallback(ctx echo.Context) error {
	log := that.logger.With("method", "GoogleCallback")

	// get state from session.
	userSession, err := session.Get(oauthSessionName, ctx)
	if err != nil {
		log.Error("failed to get session", "error", err)
		return ctx.String(http.StatusInternalServerError, "Internal Server Error")
	}

	storedState, ok := userSession.Values[oauthStateKey].(string)
	if !ok || storedState == "" {
		log.Warn("state not found in session")
		return badRequest(ctx, "invalid session state")
	}

	if state := ctx.QueryParam("state"); state != storedState {
		log.Warn("invalid OAuth state", "expected", storedState, "got", state)
		return badRequest(ctx, "invalid OAuth state")
	}

	// the state is single use
	delete(userSession.Values, oauthStateKey)
	if err = userSession.Save(ctx.Request(), ctx.Response()); err != nil {
		log.Warn("failed to clear OAuth state", "error", err)
	}

	token, err := that.oauthConfig.Exchange(ctx.Request().Context(), ctx.QueryParam("code"))
	if err != nil {
		log.Error("failed to exchange code for token", "error", err)
		return ctx.String(http.StatusInternalServerError, "Internal Server Error")
	}

	client := that.oauthConfig.Client(ctx.Request().Context(), token)

	userInfo, err := that.getUserInfo(client)
	if err != nil {
		log.Error("failed to get user info", "error", err)
		return ctx.String(http.StatusInternalServerError, "Internal Server Error")
	}

	if userInfo.Email == "" || !userInfo.VerifiedEmail {
		return badRequest(ctx, "google account has no verified email")
	}

	jwtToken, err := that.user.LoginWithEmail(ctx.Request().Context(), userInfo.Email)
	if err != nil {
		log.Error("failed to create or update user", "error", err)
		return fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, tokenResponse{Token: jwtToken})
}

func (that *googleAuthHandler) getUserInfo(client *http.Client) (*googleUserInfo, error) {
	resp, err := client.Get(that.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to request user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get user info: status %d", resp.StatusCode)
	}

	var userInfo googleUserInfo
	if err = json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &userInfo, nil
}
