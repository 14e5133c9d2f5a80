package service

import (
	"context"
	"time"

	"github.com/iliyamo/tasktracker/internal/model"
)

// UserStore is the credential store.  It is satisfied by
// repository.UserRepo and repository.MemoryUserRepo.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByName(ctx context.Context, name string) (*model.User, error)
	GetByRefreshToken(ctx context.Context, token string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
	Update(ctx context.Context, u *model.User) error
	SetRefreshToken(ctx context.Context, userID uint64, token string, exp time.Time) error
	RotateRefreshToken(ctx context.Context, userID uint64, oldToken, newToken string, exp time.Time) error
}

// TaskStore persists tasks.  It is satisfied by repository.TaskRepo and
// repository.MemoryTaskRepo.
type TaskStore interface {
	List(ctx context.Context) ([]*model.Task, error)
	GetByID(ctx context.Context, id uint64) (*model.Task, error)
	Create(ctx context.Context, t *model.Task) error
	Update(ctx context.Context, t *model.Task) error
	UpdateStatuses(ctx context.Context, tasks []*model.Task) error
	Delete(ctx context.Context, id uint64) error
}
