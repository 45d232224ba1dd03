// Package auth issues and checks credentials: bcrypt password hashes,
// access and refresh JWTs, and the password reset flow.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/mail"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/query"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// ResetTokenTTL bounds how long a mailed reset link stays usable.
const ResetTokenTTL = 10 * time.Minute

// Client-facing messages.
const (
	MsgNotLoggedIn      = "You are not logged in! Please log in to get access."
	MsgBadToken         = "Invalid token. Please log in again!"
	MsgUserGone         = "The user belonging to this token does no longer exist."
	MsgPasswordChanged  = "User recently changed password! Please log in again."
	MsgBadCredentials   = "Incorrect email or password"
	MsgNoRefreshToken   = "No refresh token provided"
	MsgResetInvalid     = "Token is invalid or has expired."
	MsgWrongCurrent     = "Your current password is wrong."
	MsgNoSuchEmail      = "There is no user with this email address."
	MsgMailFailed       = "There was an error sending the email. Try again later!"
	MsgMissingLoginData = "Please provide email and password!"
)

// Session is what a successful signup, login or password change hands
// back: the user and a fresh token pair.
type Session struct {
	User    model.User
	Access  string
	Refresh string
}

type Service struct {
	users      repository.Collection[model.User]
	tokens     *Tokens
	mail       mail.Sender
	log        *zap.Logger
	cost       int
	adminEmail string
	now        func() time.Time
}

// Options holds the tunables of NewService.
type Options struct {
	BcryptCost int
	// AdminEmail, when set, is granted the admin role on signup.
	AdminEmail string
}

func NewService(users repository.Collection[model.User], tokens *Tokens, sender mail.Sender, log *zap.Logger, opts Options) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		mail:       sender,
		log:        log,
		cost:       opts.BcryptCost,
		adminEmail: strings.ToLower(strings.TrimSpace(opts.AdminEmail)),
		now:        time.Now,
	}
}

func (s *Service) Tokens() *Tokens { return s.tokens }

// SignupInput is the body of POST /auth/signup.
type SignupInput struct {
	Name            string `json:"name" validate:"required,min=2,max=40"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,password"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// Signup creates a user with the default role and mails a welcome note.
// A failed welcome mail is logged; the account stays.
func (s *Service) Signup(ctx context.Context, in SignupInput, profileURL string) (Session, error) {
	email := normalizeEmail(in.Email)
	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return Session{}, err
	}
	u := model.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Photo:        model.DefaultPhoto,
		Role:         model.RoleUser,
		PasswordHash: hash,
		Active:       true,
	}
	if s.adminEmail != "" && email == s.adminEmail {
		u.Role = model.RoleAdmin
	}
	if err := s.users.Insert(ctx, &u); err != nil {
		return Session{}, err
	}
	if err := s.mail.Send(ctx, mail.Message{Template: mail.Welcome, To: u.Email, Name: u.Name, URL: profileURL}); err != nil {
		s.log.Warn("welcome email failed", zap.Uint64("user_id", u.ID), zap.Error(err))
	}
	return s.session(u)
}

// Login checks credentials.  Unknown email, deactivated account and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, apperror.New(http.StatusBadRequest, MsgMissingLoginData)
	}
	u, err := s.users.FindOne(ctx, query.Where("email", query.OpEq, email), activeOnly())
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, apperror.New(http.StatusUnauthorized, MsgBadCredentials)
	}
	if err != nil {
		return Session{}, err
	}
	if !VerifyPassword(u.PasswordHash, password) {
		return Session{}, apperror.New(http.StatusUnauthorized, MsgBadCredentials)
	}
	return s.session(u)
}

// Refresh mints a new access token from a refresh token.  The refresh
// token itself is left untouched.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, model.User, error) {
	if refreshToken == "" {
		return "", model.User{}, apperror.New(http.StatusUnauthorized, MsgNoRefreshToken)
	}
	claims, err := s.tokens.Parse(refreshToken, Refresh)
	if err != nil {
		return "", model.User{}, err
	}
	u, err := s.lookup(ctx, claims)
	if err != nil {
		return "", model.User{}, err
	}
	access, err := s.tokens.SignAccess(u.ID)
	return access, u, err
}

// Resolve returns the user an access token belongs to.  Tokens issued
// before the user's last password change are rejected.
func (s *Service) Resolve(ctx context.Context, accessToken string) (model.User, error) {
	if accessToken == "" {
		return model.User{}, apperror.New(http.StatusUnauthorized, MsgNotLoggedIn)
	}
	claims := s.tokens.Verify(accessToken, Access)
	if claims == nil {
		return model.User{}, apperror.New(http.StatusUnauthorized, MsgBadToken)
	}
	return s.lookup(ctx, claims)
}

func (s *Service) lookup(ctx context.Context, claims *Claims) (model.User, error) {
	u, err := s.users.Get(ctx, claims.ID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !u.Active) {
		return model.User{}, apperror.New(http.StatusUnauthorized, MsgUserGone)
	}
	if err != nil {
		return model.User{}, err
	}
	if u.ChangedPasswordAfter(claims.IssuedAtUnix()) {
		return model.User{}, apperror.New(http.StatusUnauthorized, MsgPasswordChanged)
	}
	return u, nil
}

// ForgotPassword stores a hashed reset token and mails the raw one.  If the
// mail cannot be sent the token is cleared again before failing.
func (s *Service) ForgotPassword(ctx context.Context, email string, resetURL func(token string) string) error {
	u, err := s.users.FindOne(ctx, query.Where("email", query.OpEq, normalizeEmail(email)), activeOnly())
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.New(http.StatusNotFound, MsgNoSuchEmail)
	}
	if err != nil {
		return err
	}
	raw, hash, err := newResetToken()
	if err != nil {
		return err
	}
	expires := s.now().UTC().Add(ResetTokenTTL)
	u.PasswordResetToken = hash
	u.PasswordResetExpires = &expires
	if err := s.users.Replace(ctx, &u); err != nil {
		return err
	}

	sendErr := s.mail.Send(ctx, mail.Message{Template: mail.PasswordReset, To: u.Email, Name: u.Name, URL: resetURL(raw)})
	if sendErr == nil {
		return nil
	}
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	if err := s.users.Replace(context.WithoutCancel(ctx), &u); err != nil {
		s.log.Error("clear reset token", zap.Uint64("user_id", u.ID), zap.Error(err))
	}
	return apperror.Wrap(sendErr, http.StatusInternalServerError, MsgMailFailed)
}

// ResetPasswordInput is the body of PATCH /auth/reset-password/:token.
type ResetPasswordInput struct {
	Password        string `json:"password" validate:"required,password"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (s *Service) ResetPassword(ctx context.Context, token string, in ResetPasswordInput) (Session, error) {
	now := s.now().UTC()
	u, err := s.users.FindOne(ctx,
		query.Where("passwordResetToken", query.OpEq, HashResetToken(token)),
		query.Where("passwordResetExpires", query.OpGt, now.Format(time.RFC3339Nano)),
		activeOnly(),
	)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, apperror.New(http.StatusBadRequest, MsgResetInvalid)
	}
	if err != nil {
		return Session{}, err
	}
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	if err := s.setPassword(ctx, &u, in.Password); err != nil {
		return Session{}, err
	}
	return s.session(u)
}

// UpdatePasswordInput is the body of PATCH /auth/update-my-password.
type UpdatePasswordInput struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,password"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (s *Service) UpdatePassword(ctx context.Context, userID uint64, in UpdatePasswordInput) (Session, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, apperror.New(http.StatusUnauthorized, MsgUserGone)
	}
	if err != nil {
		return Session{}, err
	}
	if !VerifyPassword(u.PasswordHash, in.PasswordCurrent) {
		return Session{}, apperror.New(http.StatusUnauthorized, MsgWrongCurrent)
	}
	if err := s.setPassword(ctx, &u, in.Password); err != nil {
		return Session{}, err
	}
	return s.session(u)
}

// setPassword backdates passwordChangedAt by a second so the token issued
// right after the change is still accepted.
func (s *Service) setPassword(ctx context.Context, u *model.User, password string) error {
	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return err
	}
	changed := s.now().UTC().Add(-time.Second)
	u.PasswordHash = hash
	u.PasswordChangedAt = &changed
	return s.users.Replace(ctx, u)
}

func (s *Service) session(u model.User) (Session, error) {
	access, err := s.tokens.SignAccess(u.ID)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.tokens.SignRefresh(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}

func activeOnly() query.Filter { return query.Where("active", query.OpEq, "true") }

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
