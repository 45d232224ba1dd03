package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind selects the secret a token is signed with.
type Kind int

const (
	Access Kind = iota
	Refresh
)

func (k Kind) String() string {
	if k == Refresh {
		return "refresh"
	}
	return "access"
}

// Claims carries the user id next to the registered exp and iat claims.
type Claims struct {
	ID uint64 `json:"id"`
	jwt.RegisteredClaims
}

// IssuedAtUnix returns iat in unix seconds, 0 when absent.
func (c *Claims) IssuedAtUnix() int64 {
	if c.IssuedAt == nil {
		return 0
	}
	return c.IssuedAt.Unix()
}

// Tokens signs and verifies HS256 tokens.  Access and refresh tokens use
// distinct secrets so one can never be replayed as the other.
type Tokens struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokens(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Tokens {
	return &Tokens{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// RefreshTTL is also the lifetime of the refresh cookie.
func (t *Tokens) RefreshTTL() time.Duration { return t.refreshTTL }

func (t *Tokens) SignAccess(id uint64) (string, error)  { return t.sign(id, Access) }
func (t *Tokens) SignRefresh(id uint64) (string, error) { return t.sign(id, Refresh) }

func (t *Tokens) sign(id uint64, kind Kind) (string, error) {
	secret, ttl := t.accessSecret, t.accessTTL
	if kind == Refresh {
		secret, ttl = t.refreshSecret, t.refreshTTL
	}
	now := t.now().UTC()
	claims := Claims{
		ID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(id, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

var errNoSubject = errors.New("token has no subject")

// Parse verifies raw and returns its claims.  The error wraps one of the
// jwt.Err* values so callers can tell an expired token from a forged one.
func (t *Tokens) Parse(raw string, kind Kind) (*Claims, error) {
	secret := t.accessSecret
	if kind == Refresh {
		secret = t.refreshSecret
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.ID == 0 {
		return nil, errors.Join(jwt.ErrTokenInvalidClaims, errNoSubject)
	}
	return &claims, nil
}

// Verify is Parse without the error: any failure yields nil.
func (t *Tokens) Verify(raw string, kind Kind) *Claims {
	c, err := t.Parse(raw, kind)
	if err != nil {
		return nil
	}
	return c
}
