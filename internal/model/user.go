package model

import "time"

// User represents an application user record as stored in the
// `users` table.  The password digest and the refresh token slot never
// leave the server; use View for anything sent to a client.
//
// Fields:
//
//	ID               - primary key identifier of the user.
//	Name             - unique display name.
//	Email            - unique email address (exact, case-sensitive match).
//	PasswordHash     - bcrypt digest with embedded salt and cost.
//	RefreshToken     - the single active refresh token, empty when absent.
//	RefreshExpiresAt - expiry of RefreshToken, nil when absent.
//	CreatedAt        - timestamp of creation.
type User struct {
	ID               uint64     // users.id
	Name             string     // users.name
	Email            string     // users.email
	PasswordHash     string     // users.password_hash
	RefreshToken     string     // users.refresh_token (nullable)
	RefreshExpiresAt *time.Time // users.refresh_token_expires_at (nullable)
	CreatedAt        time.Time  // users.created_at
}

// HasActiveRefresh reports whether the stored refresh token can still be
// exchanged at now.  An absent token or one whose expiry has passed means
// there is no active session.
func (u *User) HasActiveRefresh(now time.Time) bool {
	if u == nil || u.RefreshToken == "" || u.RefreshExpiresAt == nil {
		return false
	}
	return !u.RefreshExpiresAt.Before(now)
}

// UserView is the outward projection of a User.
type UserView struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// View returns the outward projection of u.
func (u *User) View() UserView {
	return UserView{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Views projects a slice of users, preserving order.
func Views(users []*User) []UserView {
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, u.View())
	}
	return out
}
