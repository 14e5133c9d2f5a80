package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tasktracker/internal/model"
	"github.com/iliyamo/tasktracker/internal/realtime"
)

func TestSession_AliceScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "Alice", "alice@x.com", "pw123")

	sess, err := f.sessions.Login(ctx, "alice@x.com", "pw123")
	require.NoError(t, err)
	require.NotEmpty(t, sess.AccessToken)
	require.NotEmpty(t, sess.RefreshToken)
	assert.Equal(t, "Alice", sess.User.Name)
	assert.Equal(t, "alice@x.com", sess.User.Email)

	claims, err := f.issuer.VerifyAccess(sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject)
	assert.Equal(t, "alice@x.com", claims.Email)

	original := sess.RefreshToken
	rotated, err := f.sessions.Refresh(ctx, original)
	require.NoError(t, err)
	assert.NotEqual(t, original, rotated.RefreshToken)
	_, err = f.issuer.VerifyAccess(rotated.AccessToken)
	require.NoError(t, err)

	_, err = f.sessions.Refresh(ctx, original)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// The rotated token is still good exactly once.
	_, err = f.sessions.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRegister_BroadcastsUsersWithoutDigest(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Alice", "alice@x.com", "pw123")
	f.register(t, "Bob", "bob@x.com", "pw456")

	require.Equal(t, 2, f.notifier.count())
	n := f.notifier.last()
	assert.Equal(t, realtime.EventUserUpdate, n.event)
	views, ok := n.snapshot.([]model.UserView)
	require.True(t, ok)
	require.Len(t, views, 2)
	assert.Equal(t, "Alice", views[0].Name)
	assert.Equal(t, "Bob", views[1].Name)

	u, err := f.users.GetByEmail(context.Background(), "alice@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123", u.PasswordHash)
	assert.Empty(t, u.RefreshToken)
	assert.Nil(t, u.RefreshExpiresAt)
}

func TestRegister_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Alice", "alice@x.com", "pw123")
	before := f.notifier.count()

	cases := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"duplicate email", RegisterInput{"Other", "alice@x.com", "pw"}, ErrDuplicateEmail},
		{"duplicate name", RegisterInput{"Alice", "other@x.com", "pw"}, ErrDuplicateName},
		{"email checked before name", RegisterInput{"Alice", "alice@x.com", "pw"}, ErrDuplicateEmail},
		{"missing name", RegisterInput{"  ", "n@x.com", "pw"}, ErrValidation},
		{"missing email", RegisterInput{"N", "", "pw"}, ErrValidation},
		{"missing password", RegisterInput{"N", "n@x.com", ""}, ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.sessions.Register(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, before, f.notifier.count())
}

func TestRegister_CaseSensitiveUniqueness(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Alice", "alice@x.com", "pw123")
	f.register(t, "alice", "Alice@x.com", "pw123")
}

func TestRegister_StoresNameAndEmailVerbatim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Alice", "alice@x.com", "pw123")
	f.register(t, "Alice ", " alice@x.com", "pw123")

	u, err := f.users.GetByEmail(ctx, " alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice ", u.Name)

	_, err = f.sessions.Login(ctx, " alice@x.com", "pw123")
	require.NoError(t, err)
	sess, err := f.sessions.Login(ctx, "alice@x.com", "pw123")
	require.NoError(t, err)
	assert.Equal(t, "Alice", sess.User.Name)

	assert.ErrorIs(t, f.sessions.Register(ctx, RegisterInput{"Alice ", "third@x.com", "pw"}), ErrDuplicateName)
}

func TestLogin_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Alice", "alice@x.com", "pw123")

	_, errUnknown := f.sessions.Login(ctx, "nobody@x.com", "pw123")
	_, errWrong := f.sessions.Login(ctx, "alice@x.com", "wrong")

	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestLogin_ReusesActiveRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Alice", "alice@x.com", "pw123")

	first, err := f.sessions.Login(ctx, "alice@x.com", "pw123")
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	second, err := f.sessions.Login(ctx, "alice@x.com", "pw123")
	require.NoError(t, err)
	assert.Equal(t, first.RefreshToken, second.RefreshToken)
	assert.True(t, first.RefreshExpiresAt.Equal(second.RefreshExpiresAt))
}

func TestLogin_ReplacesExpiredRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Alice", "alice@x.com", "pw123")

	first, err := f.sessions.Login(ctx, "alice@x.com", "pw123")
	require.NoError(t, err)

	f.clock.Advance(7*24*time.Hour + time.Second)
	second, err := f.sessions.Login(ctx, "alice@x.com", "pw123")
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.True(t, f.clock.Now().Add(7*24*time.Hour).Equal(second.RefreshExpiresAt))

	_, err = f.sessions.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogin_SecondLoginAfterRefreshReturnsRotatedToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Alice", "alice@x.com", "pw123")

	sess, err := f.sessions.Login(ctx, "alice@x.com", "pw123")
	require.NoError(t, err)
	rotated, err := f.sessions.Refresh(ctx, sess.RefreshToken)
	require.NoError(t, err)

	again, err := f.sessions.Login(ctx, "alice@x.com", "pw123")
	require.NoError(t, err)
	assert.Equal(t, rotated.RefreshToken, again.RefreshToken)
}

func TestRefresh_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Alice", "alice@x.com", "pw123")
	sess, err := f.sessions.Login(ctx, "alice@x.com", "pw123")
	require.NoError(t, err)

	_, err = f.sessions.Refresh(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = f.sessions.Refresh(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	f.clock.Advance(7*24*time.Hour + time.Second)
	_, err = f.sessions.Refresh(ctx, sess.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_AccessTokenExpiresAfterTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Alice", "alice@x.com", "pw123")
	sess, err := f.sessions.Login(ctx, "alice@x.com", "pw123")
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)
	_, err = f.issuer.VerifyAccess(sess.AccessToken)
	require.Error(t, err)

	renewed, err := f.sessions.Refresh(ctx, sess.RefreshToken)
	require.NoError(t, err)
	_, err = f.issuer.VerifyAccess(renewed.AccessToken)
	assert.NoError(t, err)
}
