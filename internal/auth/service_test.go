package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/mail"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

type fixture struct {
	svc    *Service
	users  repository.Collection[model.User]
	sender *recordingSender
	clock  *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	start := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{users: repository.NewMemoryStore().Users, sender: &recordingSender{}, clock: &start}
	tokens := NewTokens(testAccessSecret, testRefreshSecret, 10*time.Minute, 7*24*time.Hour)
	tokens.now = func() time.Time { return *f.clock }
	f.svc = NewService(f.users, tokens, f.sender, zap.NewNop(), Options{BcryptCost: bcrypt.MinCost, AdminEmail: "boss@example.com"})
	f.svc.now = func() time.Time { return *f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) { *f.clock = f.clock.Add(d) }

func (f *fixture) signup(t *testing.T, email string) Session {
	t.Helper()
	s, err := f.svc.Signup(context.Background(), SignupInput{
		Name: "John Doe", Email: email, Password: "Password1", PasswordConfirm: "Password1",
	}, "http://localhost/me")
	require.NoError(t, err)
	return s
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	return apperror.Translate(err).Status
}

func TestSignup(t *testing.T) {
	f := newFixture(t)
	s := f.signup(t, " John@Example.com ")

	assert.Equal(t, "john@example.com", s.User.Email)
	assert.Equal(t, model.RoleUser, s.User.Role)
	assert.Equal(t, model.DefaultPhoto, s.User.Photo)
	assert.NotEqual(t, "Password1", s.User.PasswordHash)
	assert.NotEmpty(t, s.Access)
	assert.NotEmpty(t, s.Refresh)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, mail.Welcome, f.sender.sent[0].Template)

	resolved, err := f.svc.Resolve(context.Background(), s.Access)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, resolved.ID)

	_, err = f.svc.Signup(context.Background(), SignupInput{Name: "Jane", Email: "john@example.com", Password: "Password1", PasswordConfirm: "Password1"}, "")
	var dup *repository.DuplicateError
	assert.ErrorAs(t, err, &dup)

	admin := f.signup(t, "boss@example.com")
	assert.Equal(t, model.RoleAdmin, admin.User.Role)
}

func TestSignup_WelcomeMailFailureKeepsAccount(t *testing.T) {
	f := newFixture(t)
	f.sender.err = errors.New("smtp down")
	s := f.signup(t, "john@example.com")
	_, err := f.users.Get(context.Background(), s.User.ID)
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "john@example.com")
	ctx := context.Background()

	s, err := f.svc.Login(ctx, "JOHN@example.com", "Password1")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Access)

	_, err = f.svc.Login(ctx, "john@example.com", "Password2")
	require.Error(t, err)
	e := apperror.Translate(err)
	assert.Equal(t, http.StatusUnauthorized, e.Status)
	assert.Equal(t, MsgBadCredentials, e.Message)

	_, err = f.svc.Login(ctx, "nobody@example.com", "Password1")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	_, err = f.svc.Login(ctx, "", "")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestResolve_RejectsTokensIssuedBeforePasswordChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.signup(t, "john@example.com")

	f.advance(5 * time.Second)
	_, err := f.svc.Resolve(ctx, old.Access)
	require.NoError(t, err, "token is still within its lifetime")

	fresh, err := f.svc.UpdatePassword(ctx, old.User.ID, UpdatePasswordInput{
		PasswordCurrent: "Password1", Password: "Password2", PasswordConfirm: "Password2",
	})
	require.NoError(t, err)

	f.advance(time.Second)
	_, err = f.svc.Resolve(ctx, old.Access)
	require.Error(t, err)
	assert.Equal(t, MsgPasswordChanged, apperror.Translate(err).Message)

	_, err = f.svc.Resolve(ctx, fresh.Access)
	assert.NoError(t, err)

	_, _, err = f.svc.Refresh(ctx, old.Refresh)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestResolve_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.signup(t, "john@example.com")

	_, err := f.svc.Resolve(ctx, "")
	assert.Equal(t, MsgNotLoggedIn, apperror.Translate(err).Message)

	_, err = f.svc.Resolve(ctx, "not-a-token")
	assert.Equal(t, MsgBadToken, apperror.Translate(err).Message)

	_, err = f.svc.Resolve(ctx, s.Refresh)
	assert.Equal(t, MsgBadToken, apperror.Translate(err).Message)

	u, err := f.users.Get(ctx, s.User.ID)
	require.NoError(t, err)
	u.Active = false
	require.NoError(t, f.users.Replace(ctx, &u))
	_, err = f.svc.Resolve(ctx, s.Access)
	assert.Equal(t, MsgUserGone, apperror.Translate(err).Message)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.signup(t, "john@example.com")

	_, _, err := f.svc.Refresh(ctx, "")
	require.Error(t, err)
	e := apperror.Translate(err)
	assert.Equal(t, http.StatusUnauthorized, e.Status)
	assert.Equal(t, MsgNoRefreshToken, e.Message)

	f.advance(time.Minute)
	access, u, err := f.svc.Refresh(ctx, s.Refresh)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, u.ID)
	assert.NotEqual(t, s.Access, access)
	_, err = f.svc.Resolve(ctx, access)
	assert.NoError(t, err)

	_, _, err = f.svc.Refresh(ctx, s.Access)
	assert.Equal(t, apperror.MsgInvalidToken, apperror.Translate(err).Message)

	f.advance(8 * 24 * time.Hour)
	_, _, err = f.svc.Refresh(ctx, s.Refresh)
	assert.Equal(t, apperror.MsgExpiredToken, apperror.Translate(err).Message)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.signup(t, "john@example.com")

	var raw string
	err := f.svc.ForgotPassword(ctx, "john@example.com", func(token string) string {
		raw = token
		return "http://localhost/api/v1/auth/reset-password/" + token
	})
	require.NoError(t, err)
	require.Len(t, f.sender.sent, 2)
	reset := f.sender.sent[1]
	assert.Equal(t, mail.PasswordReset, reset.Template)
	assert.True(t, strings.HasSuffix(reset.URL, raw))

	stored, err := f.users.Get(ctx, s.User.ID)
	require.NoError(t, err)
	assert.Equal(t, HashResetToken(raw), stored.PasswordResetToken)
	assert.NotEqual(t, raw, stored.PasswordResetToken)

	_, err = f.svc.ResetPassword(ctx, "wrong", ResetPasswordInput{Password: "Password9", PasswordConfirm: "Password9"})
	assert.Equal(t, MsgResetInvalid, apperror.Translate(err).Message)

	f.advance(time.Minute)
	session, err := f.svc.ResetPassword(ctx, raw, ResetPasswordInput{Password: "Password9", PasswordConfirm: "Password9"})
	require.NoError(t, err)
	assert.Empty(t, session.User.PasswordResetToken)
	assert.Nil(t, session.User.PasswordResetExpires)

	_, err = f.svc.Login(ctx, "john@example.com", "Password9")
	assert.NoError(t, err)
	_, err = f.svc.ResetPassword(ctx, raw, ResetPasswordInput{Password: "Password8", PasswordConfirm: "Password8"})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	err = f.svc.ForgotPassword(ctx, "nobody@example.com", func(string) string { return "" })
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestResetToken_Expires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "john@example.com")

	var raw string
	require.NoError(t, f.svc.ForgotPassword(ctx, "john@example.com", func(token string) string { raw = token; return token }))
	f.advance(ResetTokenTTL + time.Second)
	_, err := f.svc.ResetPassword(ctx, raw, ResetPasswordInput{Password: "Password9", PasswordConfirm: "Password9"})
	assert.Equal(t, MsgResetInvalid, apperror.Translate(err).Message)
}

func TestForgotPassword_MailFailureClearsToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.signup(t, "john@example.com")
	f.sender.err = errors.New("smtp down")

	err := f.svc.ForgotPassword(ctx, "john@example.com", func(token string) string { return token })
	require.Error(t, err)
	e := apperror.Translate(err)
	assert.Equal(t, http.StatusInternalServerError, e.Status)
	assert.Equal(t, MsgMailFailed, e.Message)

	stored, err := f.users.Get(ctx, s.User.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpires)
}

func TestUpdatePassword_WrongCurrent(t *testing.T) {
	f := newFixture(t)
	s := f.signup(t, "john@example.com")
	_, err := f.svc.UpdatePassword(context.Background(), s.User.ID, UpdatePasswordInput{
		PasswordCurrent: "Nope12345", Password: "Password2", PasswordConfirm: "Password2",
	})
	assert.Equal(t, MsgWrongCurrent, apperror.Translate(err).Message)
}
