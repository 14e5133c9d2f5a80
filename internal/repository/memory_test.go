package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tasktracker/internal/model"
)

func TestMemoryUserRepo_Uniqueness(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryUserRepo()

	require.NoError(t, r.Create(ctx, &model.User{Name: "Alice", Email: "alice@x.com"}))
	assert.ErrorIs(t, r.Create(ctx, &model.User{Name: "Other", Email: "alice@x.com"}), ErrDuplicateEmail)
	assert.ErrorIs(t, r.Create(ctx, &model.User{Name: "Alice", Email: "other@x.com"}), ErrDuplicateName)

	// Exact match only.
	assert.NoError(t, r.Create(ctx, &model.User{Name: "alice", Email: "Alice@x.com"}))
}

func TestMemoryUserRepo_RotateIsSingleUse(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryUserRepo()
	u := &model.User{Name: "Alice", Email: "alice@x.com"}
	require.NoError(t, r.Create(ctx, u))
	exp := time.Now().Add(time.Hour)
	require.NoError(t, r.SetRefreshToken(ctx, u.ID, "old", exp))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := r.RotateRefreshToken(ctx, u.ID, "old", "new", exp); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	got, err := r.GetByRefreshToken(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	_, err = r.GetByRefreshToken(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTaskRepo_CopiesOnRead(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryTaskRepo()
	task := &model.Task{Title: "a", Status: model.StatusToDo}
	require.NoError(t, r.Create(ctx, task))

	got, err := r.GetByID(ctx, task.ID)
	require.NoError(t, err)
	got.Title = "mutated"

	again, err := r.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Title)
}
