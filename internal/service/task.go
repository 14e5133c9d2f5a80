package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/tasktracker/internal/model"
	"github.com/iliyamo/tasktracker/internal/realtime"
)

// TaskInput carries client-writable task fields.  ID is only consulted on
// update, where a non-zero value must match the addressed task.
type TaskInput struct {
	ID           uint64
	Title        string
	Description  string
	Status       string
	DueDate      *time.Time
	AssignedToID *uint64
}

// TaskService lists and mutates tasks.  Reads apply the overdue derivation
// and persist any status it changed; writes broadcast the task collection.
type TaskService struct {
	tasks    TaskStore
	users    UserStore
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

// NewTaskService wires the task operations.  A nil notifier disables
// broadcasts.
func NewTaskService(tasks TaskStore, users UserStore, notifier Notifier, log *slog.Logger) *TaskService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &TaskService{tasks: tasks, users: users, notifier: notifier, log: log, now: time.Now}
}

// List returns every task with derived statuses applied.
func (s *TaskService) List(ctx context.Context) ([]*model.Task, error) {
	list, err := s.tasks.List(ctx)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}

	now := s.now()
	var changed []*model.Task
	for _, t := range list {
		if model.DeriveStatus(t, now) {
			changed = append(changed, t)
		}
	}
	if len(changed) > 0 {
		if err := s.tasks.UpdateStatuses(ctx, changed); err != nil {
			return nil, storeErr("persist derived statuses", err)
		}
		s.log.Info("tasks.overdue", "count", len(changed))
	}
	return list, nil
}

// Get returns one task with its derived status applied.
func (s *TaskService) Get(ctx context.Context, id uint64) (*model.Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get task", err)
	}
	if model.DeriveStatus(t, s.now()) {
		if err := s.tasks.UpdateStatuses(ctx, []*model.Task{t}); err != nil {
			return nil, storeErr("persist derived status", err)
		}
	}
	return t, nil
}

// Create stores a new task.  The status starts at To-Do regardless of
// input, or Overdue when the due date has already passed.
func (s *TaskService) Create(ctx context.Context, in TaskInput) (*model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if in.DueDate == nil || in.DueDate.IsZero() {
		return nil, invalid("dueDate is required")
	}
	if err := s.checkAssignee(ctx, in.AssignedToID); err != nil {
		return nil, err
	}

	t := &model.Task{
		Title:        title,
		Description:  in.Description,
		Status:       model.StatusToDo,
		DueDate:      in.DueDate.UTC(),
		CreatedAt:    s.now().UTC(),
		AssignedToID: in.AssignedToID,
	}
	model.DeriveStatus(t, s.now())
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, storeErr("create task", err)
	}
	s.log.Info("task.created", "task_id", t.ID)

	s.broadcast(ctx)
	return t, nil
}

// Update replaces the writable fields of task id.  A nil DueDate keeps the
// stored one; Overdue is never accepted and is re-derived after the write.
func (s *TaskService) Update(ctx context.Context, id uint64, in TaskInput) (*model.Task, error) {
	if in.ID != 0 && in.ID != id {
		return nil, invalid("task id does not match")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if !model.SettableStatus(in.Status) {
		return nil, invalid("status must be one of To-Do, In Progress, Done")
	}

	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get task", err)
	}
	if err := s.checkAssignee(ctx, in.AssignedToID); err != nil {
		return nil, err
	}

	t.Title = title
	t.Description = in.Description
	t.Status = in.Status
	t.AssignedToID = in.AssignedToID
	if in.DueDate != nil && !in.DueDate.IsZero() {
		t.DueDate = in.DueDate.UTC()
	}
	model.DeriveStatus(t, s.now())

	if err := s.tasks.Update(ctx, t); err != nil {
		return nil, storeErr("update task", err)
	}
	s.log.Info("task.updated", "task_id", t.ID, "status", t.Status)

	s.broadcast(ctx)
	return t, nil
}

// Delete removes task id.
func (s *TaskService) Delete(ctx context.Context, id uint64) error {
	if err := s.tasks.Delete(ctx, id); err != nil {
		return storeErr("delete task", err)
	}
	s.log.Info("task.deleted", "task_id", id)

	s.broadcast(ctx)
	return nil
}

func (s *TaskService) checkAssignee(ctx context.Context, id *uint64) error {
	if id == nil {
		return nil
	}
	if _, err := s.users.GetByID(ctx, *id); err != nil {
		if notFound(err) {
			return invalid("assigned user does not exist")
		}
		return storeErr("lookup assignee", err)
	}
	return nil
}

// broadcast pushes the task collection after a committed mutation.  The
// re-read outlives the request so a client that hangs up still leaves every
// other observer with the new snapshot.
func (s *TaskService) broadcast(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	list, err := s.List(ctx)
	if err != nil {
		s.log.Error("broadcast.tasks.query", "err", err)
		return
	}
	if err := s.notifier.Notify(ctx, realtime.EventTaskUpdate, list); err != nil {
		s.log.Error("broadcast.tasks.notify", "err", err)
	}
}
