package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/tasktracker/internal/metrics"
	"github.com/iliyamo/tasktracker/internal/model"
	"github.com/iliyamo/tasktracker/internal/utils"
)

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Session is the token pair handed to a client after login or refresh.
type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             model.UserView
}

// SessionService implements register, login and refresh on top of the
// credential store.  Each user holds one refresh token slot: a new token
// overwrites the previous one, so a second login from another device
// silently ends the first device's refresh path.
type SessionService struct {
	users    UserStore
	hasher   *utils.PasswordHasher
	tokens   *utils.TokenIssuer
	notifier Notifier
	log      *slog.Logger
}

// NewSessionService wires the session core.  A nil notifier disables
// broadcasts.
func NewSessionService(users UserStore, hasher *utils.PasswordHasher, tokens *utils.TokenIssuer, notifier Notifier, log *slog.Logger) *SessionService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &SessionService{users: users, hasher: hasher, tokens: tokens, notifier: notifier, log: log}
}

// Register creates a user with no refresh token and broadcasts the user
// collection.  It does not log the user in.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (err error) {
	defer func() { s.count("register", err) }()

	switch {
	case strings.TrimSpace(in.Name) == "":
		return invalid("name is required")
	case strings.TrimSpace(in.Email) == "":
		return invalid("email is required")
	case in.Password == "":
		return invalid("password is required")
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return ErrDuplicateEmail
	} else if !notFound(err) {
		return storeErr("lookup email", err)
	}
	if _, err := s.users.GetByName(ctx, in.Name); err == nil {
		return ErrDuplicateName
	} else if !notFound(err) {
		return storeErr("lookup name", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{Name: in.Name, Email: in.Email, PasswordHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		return storeErr("create user", err)
	}
	s.log.Info("auth.register", "user_id", u.ID)

	broadcastUsers(ctx, s.users, s.notifier, s.log)
	return nil
}

// Login verifies credentials and always issues a fresh access token.  The
// stored refresh token is reused while it is unexpired; otherwise a new one
// is minted and persisted with a reset expiry.
func (s *SessionService) Login(ctx context.Context, email, password string) (_ *Session, err error) {
	defer func() { s.count("login", err) }()

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if notFound(err) {
			s.log.Info("auth.login.reject", "reason", "unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr("lookup email", err)
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		s.log.Info("auth.login.reject", "reason", "bad_password", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}

	access, err := s.tokens.IssueAccess(u.ID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	sess := &Session{
		AccessToken:     access.Token,
		AccessExpiresAt: access.Exp,
		User:            u.View(),
	}

	if u.HasActiveRefresh(s.tokens.Now()) {
		sess.RefreshToken = u.RefreshToken
		sess.RefreshExpiresAt = *u.RefreshExpiresAt
	} else {
		rt, err := s.tokens.IssueRefresh()
		if err != nil {
			return nil, fmt.Errorf("issue refresh token: %w", err)
		}
		if err := s.users.SetRefreshToken(ctx, u.ID, rt.Raw, rt.Exp); err != nil {
			return nil, storeErr("store refresh token", err)
		}
		sess.RefreshToken = rt.Raw
		sess.RefreshExpiresAt = rt.Exp
	}

	s.log.Info("auth.login", "user_id", u.ID)
	return sess, nil
}

// Refresh exchanges a refresh token for a new access token and rotates the
// refresh token.  The rotation is conditional on the stored value still
// matching, so a token can be redeemed at most once.
func (s *SessionService) Refresh(ctx context.Context, raw string) (_ *Session, err error) {
	defer func() { s.count("refresh", err) }()

	if raw == "" {
		return nil, ErrInvalidRefreshToken
	}
	u, err := s.users.GetByRefreshToken(ctx, raw)
	if err != nil {
		if notFound(err) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, storeErr("lookup refresh token", err)
	}
	if !u.HasActiveRefresh(s.tokens.Now()) {
		s.log.Info("auth.refresh.reject", "reason", "expired", "user_id", u.ID)
		return nil, ErrInvalidRefreshToken
	}

	access, err := s.tokens.IssueAccess(u.ID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	rt, err := s.tokens.IssueRefresh()
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.users.RotateRefreshToken(ctx, u.ID, raw, rt.Raw, rt.Exp); err != nil {
		if notFound(err) {
			s.log.Info("auth.refresh.reject", "reason", "already_rotated", "user_id", u.ID)
			return nil, ErrInvalidRefreshToken
		}
		return nil, storeErr("rotate refresh token", err)
	}

	s.log.Info("auth.refresh", "user_id", u.ID)
	return &Session{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.Exp,
		RefreshToken:     rt.Raw,
		RefreshExpiresAt: rt.Exp,
		User:             u.View(),
	}, nil
}

func (s *SessionService) count(op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrValidation):
		outcome = "invalid"
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrDuplicateName):
		outcome = "conflict"
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidRefreshToken):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	metrics.AuthEvents.WithLabelValues(op, outcome).Inc()
}
