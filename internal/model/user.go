package model

import "time"

// Roles known to the authorization gate.
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

// DefaultPhoto is assigned to accounts that never uploaded one.
const DefaultPhoto = "default.jpg"

// User is an account.  Credentials, reset state and the soft-delete flag
// never leave the server.
type User struct {
	Meta
	Name                 string     `json:"name" validate:"required,min=2,max=40"`
	Email                string     `json:"email" validate:"required,email"`
	Photo                string     `json:"photo"`
	Role                 string     `json:"role" validate:"oneof=user guide lead-guide admin"`
	PasswordChangedAt    *time.Time `json:"passwordChangedAt,omitempty"`
	PasswordHash         string     `json:"-"`
	PasswordResetToken   string     `json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	Active               bool       `json:"-"`
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at iat (unix seconds).  Both sides are compared at second
// granularity.
func (u *User) ChangedPasswordAfter(iat int64) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > iat
}

// UserSummary is the public face of a user embedded in other documents.
type UserSummary struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Photo string `json:"photo"`
	Role  string `json:"role,omitempty"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Photo: u.Photo, Role: u.Role}
}
