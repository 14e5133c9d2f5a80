package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/tasktracker/internal/model"
)

// MemoryUserRepo is the in-process user store used when STORE=memory and
// in tests.  Reads and writes copy records so callers never share memory
// with the store.
type MemoryUserRepo struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]*model.User
}

// NewMemoryUserRepo constructs an empty in-memory user store.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[uint64]*model.User)}
}

func (r *MemoryUserRepo) Create(ctx context.Context, u *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUniqueLocked(0, u.Name, u.Email); err != nil {
		return err
	}
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = time.Now().UTC()
	u.RefreshToken = ""
	u.RefreshExpiresAt = nil
	r.users[u.ID] = copyUser(u)
	return nil
}

func (r *MemoryUserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.find(ctx, func(u *model.User) bool { return u.ID == id })
}

func (r *MemoryUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.find(ctx, func(u *model.User) bool { return u.Email == email })
}

func (r *MemoryUserRepo) GetByName(ctx context.Context, name string) (*model.User, error) {
	return r.find(ctx, func(u *model.User) bool { return u.Name == name })
}

func (r *MemoryUserRepo) GetByRefreshToken(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return r.find(ctx, func(u *model.User) bool { return u.RefreshToken == token })
}

func (r *MemoryUserRepo) List(ctx context.Context) ([]*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryUserRepo) Update(ctx context.Context, u *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	if err := r.checkUniqueLocked(u.ID, u.Name, u.Email); err != nil {
		return err
	}
	cur.Name, cur.Email, cur.PasswordHash = u.Name, u.Email, u.PasswordHash
	return nil
}

func (r *MemoryUserRepo) SetRefreshToken(ctx context.Context, userID uint64, token string, exp time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	cur.RefreshToken = token
	cur.RefreshExpiresAt = &exp
	return nil
}

func (r *MemoryUserRepo) RotateRefreshToken(ctx context.Context, userID uint64, oldToken, newToken string, exp time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.users[userID]
	if !ok || cur.RefreshToken == "" || cur.RefreshToken != oldToken {
		return ErrNotFound
	}
	cur.RefreshToken = newToken
	cur.RefreshExpiresAt = &exp
	return nil
}

func (r *MemoryUserRepo) find(ctx context.Context, match func(*model.User) bool) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepo) checkUniqueLocked(selfID uint64, name, email string) error {
	for _, u := range r.users {
		if u.ID == selfID {
			continue
		}
		if u.Email == email {
			return ErrDuplicateEmail
		}
		if u.Name == name {
			return ErrDuplicateName
		}
	}
	return nil
}

func copyUser(u *model.User) *model.User {
	c := *u
	if u.RefreshExpiresAt != nil {
		t := *u.RefreshExpiresAt
		c.RefreshExpiresAt = &t
	}
	return &c
}

// MemoryTaskRepo is the in-process task store.
type MemoryTaskRepo struct {
	mu     sync.Mutex
	nextID uint64
	tasks  map[uint64]*model.Task
}

// NewMemoryTaskRepo constructs an empty in-memory task store.
func NewMemoryTaskRepo() *MemoryTaskRepo {
	return &MemoryTaskRepo{tasks: make(map[uint64]*model.Task)}
}

func (r *MemoryTaskRepo) List(ctx context.Context) ([]*model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, copyTask(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryTaskRepo) GetByID(ctx context.Context, id uint64) (*model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTask(t), nil
}

func (r *MemoryTaskRepo) Create(ctx context.Context, t *model.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	t.ID = r.nextID
	r.tasks[t.ID] = copyTask(t)
	return nil
}

func (r *MemoryTaskRepo) Update(ctx context.Context, t *model.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.tasks[t.ID]
	if !ok {
		return ErrNotFound
	}
	createdAt := cur.CreatedAt
	r.tasks[t.ID] = copyTask(t)
	r.tasks[t.ID].CreatedAt = createdAt
	return nil
}

func (r *MemoryTaskRepo) UpdateStatuses(ctx context.Context, tasks []*model.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tasks {
		if cur, ok := r.tasks[t.ID]; ok {
			cur.Status = t.Status
		}
	}
	return nil
}

func (r *MemoryTaskRepo) Delete(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func copyTask(t *model.Task) *model.Task {
	c := *t
	if t.AssignedToID != nil {
		id := *t.AssignedToID
		c.AssignedToID = &id
	}
	return &c
}
