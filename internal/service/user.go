package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iliyamo/tasktracker/internal/model"
	"github.com/iliyamo/tasktracker/internal/utils"
)

// UserInput carries the writable user fields.  An empty Password keeps the
// current digest.
type UserInput struct {
	ID       uint64
	Name     string
	Email    string
	Password string
}

// UserService exposes the user directory.  Password digests and refresh
// tokens never leave it; callers only see model.UserView.
type UserService struct {
	users    UserStore
	hasher   *utils.PasswordHasher
	notifier Notifier
	log      *slog.Logger
}

func NewUserService(users UserStore, hasher *utils.PasswordHasher, notifier Notifier, log *slog.Logger) *UserService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &UserService{users: users, hasher: hasher, notifier: notifier, log: log}
}

func (s *UserService) List(ctx context.Context) ([]model.UserView, error) {
	list, err := s.users.List(ctx)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	return model.Views(list), nil
}

func (s *UserService) Get(ctx context.Context, id uint64) (model.UserView, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.UserView{}, storeErr("get user", err)
	}
	return u.View(), nil
}

// Update changes name, email and optionally the password of user id, then
// broadcasts the user collection.
func (s *UserService) Update(ctx context.Context, id uint64, in UserInput) (model.UserView, error) {
	if in.ID != 0 && in.ID != id {
		return model.UserView{}, invalid("user id does not match")
	}
	if strings.TrimSpace(in.Name) == "" {
		return model.UserView{}, invalid("name is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return model.UserView{}, invalid("email is required")
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.UserView{}, storeErr("get user", err)
	}

	if in.Email != u.Email {
		taken, err := claimed(s.users.GetByEmail(ctx, in.Email))
		if err != nil {
			return model.UserView{}, err
		}
		if taken {
			return model.UserView{}, ErrDuplicateEmail
		}
	}
	if in.Name != u.Name {
		taken, err := claimed(s.users.GetByName(ctx, in.Name))
		if err != nil {
			return model.UserView{}, err
		}
		if taken {
			return model.UserView{}, ErrDuplicateName
		}
	}

	u.Name = in.Name
	u.Email = in.Email
	if in.Password != "" {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return model.UserView{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}

	if err := s.users.Update(ctx, u); err != nil {
		return model.UserView{}, storeErr("update user", err)
	}
	s.log.Info("user.updated", "user_id", u.ID, "password_changed", in.Password != "")

	broadcastUsers(ctx, s.users, s.notifier, s.log)
	return u.View(), nil
}

// claimed reports whether a unique-field lookup found a row.
func claimed(_ *model.User, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case notFound(err):
		return false, nil
	}
	return false, storeErr("lookup user", err)
}
