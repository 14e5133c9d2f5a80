package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tasktracker/internal/service"
)

// UserHandler serves /users.  Responses only carry id, name and email.
type UserHandler struct {
	Users *service.UserService
	Log   *slog.Logger
}

func NewUserHandler(s *service.UserService, log *slog.Logger) *UserHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UserHandler{Users: s, Log: log}
}

type userReq struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UserHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	users, err := h.Users.List(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badID(c)
	}
	ctx := c.Request().Context()

	u, err := h.Users.Get(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Update(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badID(c)
	}
	var req userReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx := c.Request().Context()

	u, err := h.Users.Update(ctx, id, service.UserInput{ID: req.ID, Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}
