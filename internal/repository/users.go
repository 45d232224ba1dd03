package repository

import (
	"database/sql"
	"time"

	"github.com/iliyamo/tour-booking/internal/model"
)

var UserSchema = Schema[model.User]{
	Table:  "users",
	Unique: [][]string{{"email"}},
	Meta:   func(u *model.User) *model.Meta { return &u.Meta },
	Fields: append([]Field[model.User]{
		{Name: "name", Column: "name", Get: func(u *model.User) any { return u.Name }},
		{Name: "email", Column: "email", FoldCase: true, Get: func(u *model.User) any { return u.Email }},
		{Name: "photo", Column: "photo", Get: func(u *model.User) any { return u.Photo }},
		{Name: "role", Column: "role", Get: func(u *model.User) any { return u.Role }},
		{Name: "passwordChangedAt", Column: "password_changed_at", Kind: KindTime, Get: func(u *model.User) any { return nullTime(u.PasswordChangedAt) }},
		{Name: "passwordHash", Column: "password_hash", Hidden: true, Get: func(u *model.User) any { return u.PasswordHash }},
		{Name: "passwordResetToken", Column: "password_reset_token", Hidden: true, Get: func(u *model.User) any { return u.PasswordResetToken }},
		{Name: "passwordResetExpires", Column: "password_reset_expires", Kind: KindTime, Hidden: true, Get: func(u *model.User) any { return nullTime(u.PasswordResetExpires) }},
		{Name: "active", Column: "active", Kind: KindBool, Hidden: true, Get: func(u *model.User) any { return u.Active }},
	}, metaFields(func(u *model.User) *model.Meta { return &u.Meta })...),
	Scan: func(scan func(dest ...any) error) (model.User, error) {
		var u model.User
		var changed, expires sql.NullTime
		err := scan(&u.ID, &u.Name, &u.Email, &u.Photo, &u.Role, &changed, &u.PasswordHash,
			&u.PasswordResetToken, &expires, &u.Active, &u.CreatedAt, &u.Version)
		u.PasswordChangedAt = timePtr(changed)
		u.PasswordResetExpires = timePtr(expires)
		return u, err
	},
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
