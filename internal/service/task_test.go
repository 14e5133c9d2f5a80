package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tasktracker/internal/model"
	"github.com/iliyamo/tasktracker/internal/realtime"
	"github.com/iliyamo/tasktracker/internal/repository"
)

func ptrTime(t time.Time) *time.Time { return &t }
func ptrID(id uint64) *uint64        { return &id }

func TestTaskCreate_ForcesToDoAndBroadcasts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.taskSvc.Create(ctx, TaskInput{
		Title:   "write report",
		Status:  model.StatusDone,
		DueDate: ptrTime(f.clock.Now().Add(48 * time.Hour)),
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusToDo, task.Status)
	assert.NotZero(t, task.ID)

	n := f.notifier.last()
	assert.Equal(t, realtime.EventTaskUpdate, n.event)
	list, ok := n.snapshot.([]*model.Task)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, "write report", list[0].Title)
}

func TestTaskCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := ptrTime(f.clock.Now().Add(time.Hour))

	_, err := f.taskSvc.Create(ctx, TaskInput{Title: " ", DueDate: due})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.taskSvc.Create(ctx, TaskInput{Title: "no due date"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.taskSvc.Create(ctx, TaskInput{Title: "ghost", DueDate: due, AssignedToID: ptrID(99)})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, f.notifier.count())
}

func TestTaskCreate_WithAssignee(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Alice", "alice@x.com", "pw123")

	task, err := f.taskSvc.Create(context.Background(), TaskInput{
		Title:        "pair",
		DueDate:      ptrTime(f.clock.Now().Add(time.Hour)),
		AssignedToID: ptrID(1),
	})
	require.NoError(t, err)
	require.NotNil(t, task.AssignedToID)
	assert.Equal(t, uint64(1), *task.AssignedToID)
}

func TestTaskList_DerivesAndPersistsOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	late, err := f.taskSvc.Create(ctx, TaskInput{Title: "late", DueDate: ptrTime(f.clock.Now().Add(time.Hour))})
	require.NoError(t, err)
	done, err := f.taskSvc.Create(ctx, TaskInput{Title: "done", DueDate: ptrTime(f.clock.Now().Add(time.Hour))})
	require.NoError(t, err)
	_, err = f.taskSvc.Update(ctx, done.ID, TaskInput{Title: "done", Status: model.StatusDone})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)

	list, err := f.taskSvc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, model.StatusOverdue, list[0].Status)
	assert.Equal(t, model.StatusDone, list[1].Status)

	stored, err := f.tasks.GetByID(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOverdue, stored.Status)
}

func TestTaskGet_Derives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.taskSvc.Create(ctx, TaskInput{Title: "soon", DueDate: ptrTime(f.clock.Now().Add(time.Minute))})
	require.NoError(t, err)

	got, err := f.taskSvc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusToDo, got.Status)

	f.clock.Advance(time.Hour)
	got, err = f.taskSvc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOverdue, got.Status)

	_, err = f.taskSvc.Get(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, err := f.taskSvc.Create(ctx, TaskInput{Title: "t", DueDate: ptrTime(f.clock.Now().Add(time.Hour))})
	require.NoError(t, err)

	t.Run("rejects overdue", func(t *testing.T) {
		_, err := f.taskSvc.Update(ctx, task.ID, TaskInput{Title: "t", Status: model.StatusOverdue})
		assert.ErrorIs(t, err, ErrValidation)
	})
	t.Run("rejects id mismatch", func(t *testing.T) {
		_, err := f.taskSvc.Update(ctx, task.ID, TaskInput{ID: task.ID + 1, Title: "t", Status: model.StatusDone})
		assert.ErrorIs(t, err, ErrValidation)
	})
	t.Run("not found", func(t *testing.T) {
		_, err := f.taskSvc.Update(ctx, 999, TaskInput{Title: "t", Status: model.StatusDone})
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("keeps due date when omitted", func(t *testing.T) {
		got, err := f.taskSvc.Update(ctx, task.ID, TaskInput{Title: "renamed", Status: model.StatusInProgress})
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Title)
		assert.Equal(t, model.StatusInProgress, got.Status)
		assert.True(t, task.DueDate.Equal(got.DueDate))
	})
	t.Run("past due date is re-derived", func(t *testing.T) {
		before := f.notifier.count()
		got, err := f.taskSvc.Update(ctx, task.ID, TaskInput{
			Title:   "renamed",
			Status:  model.StatusInProgress,
			DueDate: ptrTime(f.clock.Now().Add(-time.Hour)),
		})
		require.NoError(t, err)
		assert.Equal(t, model.StatusOverdue, got.Status)
		assert.Equal(t, before+1, f.notifier.count())
	})
}

func TestTaskDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, err := f.taskSvc.Create(ctx, TaskInput{Title: "gone", DueDate: ptrTime(f.clock.Now().Add(time.Hour))})
	require.NoError(t, err)

	require.NoError(t, f.taskSvc.Delete(ctx, task.ID))
	n := f.notifier.last()
	assert.Equal(t, realtime.EventTaskUpdate, n.event)
	assert.Empty(t, n.snapshot)

	assert.ErrorIs(t, f.taskSvc.Delete(ctx, task.ID), ErrNotFound)
}

func TestTaskCreate_PastDueIsOverdue(t *testing.T) {
	f := newFixture(t)
	task, err := f.taskSvc.Create(context.Background(), TaskInput{Title: "late", DueDate: ptrTime(f.clock.Now().Add(-time.Minute))})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOverdue, task.Status)
}

type failingTasks struct{ TaskStore }

func (failingTasks) List(context.Context) ([]*model.Task, error) { return nil, errors.New("db down") }

func TestTaskList_StorageFailure(t *testing.T) {
	svc := NewTaskService(failingTasks{}, nil, nil, nil)
	_, err := svc.List(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NotErrorIs(t, err, ErrNotFound)
}

// hangupTasks cancels the request context as soon as a write commits, the
// way a client that disconnects mid-request would.
type hangupTasks struct {
	*repository.MemoryTaskRepo
	cancel context.CancelFunc
}

func (h hangupTasks) Create(ctx context.Context, t *model.Task) error {
	err := h.MemoryTaskRepo.Create(ctx, t)
	h.cancel()
	return err
}

func (h hangupTasks) Update(ctx context.Context, t *model.Task) error {
	err := h.MemoryTaskRepo.Update(ctx, t)
	h.cancel()
	return err
}

func (h hangupTasks) Delete(ctx context.Context, id uint64) error {
	err := h.MemoryTaskRepo.Delete(ctx, id)
	h.cancel()
	return err
}

func TestTaskMutations_BroadcastAfterRequestCancelled(t *testing.T) {
	f := newFixture(t)
	repo := repository.NewMemoryTaskRepo()
	due := ptrTime(f.clock.Now().Add(time.Hour))

	newRequest := func() (context.Context, *TaskService) {
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		svc := NewTaskService(hangupTasks{repo, cancel}, f.users, f.notifier, nil)
		svc.now = f.clock.Now
		return ctx, svc
	}

	ctx, svc := newRequest()
	created, err := svc.Create(ctx, TaskInput{Title: "survives hangup", DueDate: due})
	require.NoError(t, err)
	assert.Error(t, ctx.Err())
	require.Equal(t, 1, f.notifier.count())
	list, ok := f.notifier.last().snapshot.([]*model.Task)
	require.True(t, ok)
	require.Len(t, list, 1)

	ctx, svc = newRequest()
	_, err = svc.Update(ctx, created.ID, TaskInput{ID: created.ID, Title: "renamed", Status: model.StatusDone, DueDate: due})
	require.NoError(t, err)
	require.Equal(t, 2, f.notifier.count())
	list = f.notifier.last().snapshot.([]*model.Task)
	require.Len(t, list, 1)
	assert.Equal(t, "renamed", list[0].Title)

	ctx, svc = newRequest()
	require.NoError(t, svc.Delete(ctx, created.ID))
	require.Equal(t, 3, f.notifier.count())
	assert.Empty(t, f.notifier.last().snapshot)
}
