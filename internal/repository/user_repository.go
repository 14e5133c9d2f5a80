package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/tasktracker/internal/model"
)

const userColumns = "id, name, email, password_hash, refresh_token, refresh_token_expires_at, created_at"

// UserRepo persists users and their single refresh token slot in MySQL.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u and fills in its ID and CreatedAt.  The refresh slot
// starts empty.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, created_at) VALUES (?,?,?,?)",
		u.Name, u.Email, u.PasswordHash, now)
	if err != nil {
		return mapDuplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.CreatedAt = now
	return nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// GetByEmail fetches a user by exact email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

// GetByName fetches a user by exact display name.
func (r *UserRepo) GetByName(ctx context.Context, name string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE name=? LIMIT 1", name)
}

// GetByRefreshToken fetches the user whose slot holds token.  Expiry is
// left to the caller.
func (r *UserRepo) GetByRefreshToken(ctx context.Context, token string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE refresh_token=? LIMIT 1", token)
}

// List returns every user ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes name, email and password digest.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name=?, email=?, password_hash=? WHERE id=?",
		u.Name, u.Email, u.PasswordHash, u.ID)
	if err != nil {
		return mapDuplicate(err)
	}
	return requireRow(res)
}

// SetRefreshToken overwrites the user's refresh slot.  Any previous token
// stops working.
func (r *UserRepo) SetRefreshToken(ctx context.Context, userID uint64, token string, exp time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token=?, refresh_token_expires_at=? WHERE id=?",
		token, exp, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RotateRefreshToken replaces oldToken with newToken only while oldToken is
// still the stored value, so a token can be exchanged at most once.  It
// returns ErrNotFound when the slot no longer holds oldToken.
func (r *UserRepo) RotateRefreshToken(ctx context.Context, userID uint64, oldToken, newToken string, exp time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token=?, refresh_token_expires_at=? WHERE id=? AND refresh_token=?",
		newToken, exp, userID, oldToken)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u       model.User
		token   sql.NullString
		expires sql.NullTime
	)
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &token, &expires, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.RefreshToken = token.String
	if expires.Valid {
		t := expires.Time.UTC()
		u.RefreshExpiresAt = &t
	}
	return &u, nil
}

// requireRow turns a zero-row update into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
