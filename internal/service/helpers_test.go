package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/tasktracker/internal/repository"
	"github.com/iliyamo/tasktracker/internal/utils"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type notification struct {
	event    string
	snapshot any
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []notification
}

func (n *recordingNotifier) Notify(_ context.Context, event string, snapshot any) error {
	n.mu.Lock()
	n.got = append(n.got, notification{event, snapshot})
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) last() notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.got) == 0 {
		return notification{}
	}
	return n.got[len(n.got)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.got)
}

type fixture struct {
	clock    *fakeClock
	users    *repository.MemoryUserRepo
	tasks    *repository.MemoryTaskRepo
	issuer   *utils.TokenIssuer
	hasher   *utils.PasswordHasher
	notifier *recordingNotifier
	sessions *SessionService
	taskSvc  *TaskService
	userSvc  *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:    &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		users:    repository.NewMemoryUserRepo(),
		tasks:    repository.NewMemoryTaskRepo(),
		hasher:   utils.NewPasswordHasher(bcrypt.MinCost),
		notifier: &recordingNotifier{},
	}
	var err error
	f.issuer, err = utils.NewTokenIssuer("test-secret", "tasktracker", "tasktracker-web",
		30*time.Minute, 7*24*time.Hour, utils.WithClock(f.clock.Now))
	require.NoError(t, err)

	f.sessions = NewSessionService(f.users, f.hasher, f.issuer, f.notifier, nil)
	f.taskSvc = NewTaskService(f.tasks, f.users, f.notifier, nil)
	f.taskSvc.now = f.clock.Now
	f.userSvc = NewUserService(f.users, f.hasher, f.notifier, nil)
	return f
}

func (f *fixture) register(t *testing.T, name, email, password string) {
	t.Helper()
	require.NoError(t, f.sessions.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: password}))
}
