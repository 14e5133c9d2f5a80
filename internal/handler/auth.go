package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tasktracker/internal/model"
	"github.com/iliyamo/tasktracker/internal/service"
)

// AuthHandler serves register, login and refresh.
type AuthHandler struct {
	Sessions *service.SessionService
	Log      *slog.Logger
}

func NewAuthHandler(s *service.SessionService, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{Sessions: s, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResp struct {
	AccessToken           string          `json:"accessToken"`
	AccessTokenExpiresAt  time.Time       `json:"accessTokenExpiresAt"`
	RefreshToken          string          `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time       `json:"refreshTokenExpiresAt"`
	User                  *model.UserView `json:"user,omitempty"`
}

func toTokenResp(s *service.Session, withUser bool) tokenResp {
	r := tokenResp{
		AccessToken:           s.AccessToken,
		AccessTokenExpiresAt:  s.AccessExpiresAt,
		RefreshToken:          s.RefreshToken,
		RefreshTokenExpiresAt: s.RefreshExpiresAt,
	}
	if withUser {
		u := s.User
		r.User = &u
	}
	return r
}

// Register creates an account.  The client logs in separately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}

	ctx := c.Request().Context()

	if err := h.Sessions.Register(ctx, service.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password}); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user registered"})
}

// Login returns an access token, the current refresh token and the user.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}

	ctx := c.Request().Context()

	sess, err := h.Sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toTokenResp(sess, true))
}

// Refresh exchanges a refresh token for a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}

	ctx := c.Request().Context()

	sess, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toTokenResp(sess, false))
}
