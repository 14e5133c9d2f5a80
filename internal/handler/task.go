package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tasktracker/internal/service"
)

// TaskHandler serves /tasks.
type TaskHandler struct {
	Tasks *service.TaskService
	Log   *slog.Logger
}

func NewTaskHandler(s *service.TaskService, log *slog.Logger) *TaskHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TaskHandler{Tasks: s, Log: log}
}

type taskReq struct {
	ID           uint64   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Status       string   `json:"status"`
	DueDate      *dueDate `json:"dueDate"`
	AssignedToID *uint64  `json:"assignedToId"`
}

func (r taskReq) input() service.TaskInput {
	return service.TaskInput{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Status:       r.Status,
		DueDate:      r.DueDate.ptr(),
		AssignedToID: r.AssignedToID,
	}
}

func (h *TaskHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	tasks, err := h.Tasks.List(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badID(c)
	}
	ctx := c.Request().Context()

	t, err := h.Tasks.Get(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TaskHandler) Create(c echo.Context) error {
	var req taskReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx := c.Request().Context()

	t, err := h.Tasks.Create(ctx, req.input())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *TaskHandler) Update(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badID(c)
	}
	var req taskReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx := c.Request().Context()

	t, err := h.Tasks.Update(ctx, id, req.input())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TaskHandler) Delete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badID(c)
	}
	ctx := c.Request().Context()

	if err := h.Tasks.Delete(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
