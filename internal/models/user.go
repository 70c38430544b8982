package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Toggle flips user <-> admin. Anything else becomes admin.
func (r Role) Toggle() Role {
	if r == RoleAdmin {
		return RoleUser
	}
	return RoleAdmin
}

type User struct {
	bun.BaseModel `bun:"table:users"`

	UserID       int64     `json:"userId" bun:"user_id,pk,autoincrement"`
	Firstname    string    `json:"firstname" bun:"firstname"`
	Lastname     string    `json:"lastname" bun:"lastname"`
	Email        string    `json:"email" bun:"email,unique,notnull"`
	ContactPhone string    `json:"contactPhone,omitempty" bun:"contact_phone"`
	Address      string    `json:"address,omitempty" bun:"address"`
	ProfileURL   string    `json:"profileUrl,omitempty" bun:"profile_url"`
	Role         Role      `json:"role" bun:"role,notnull"`
	CreatedAt    time.Time `json:"createdAt" bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `json:"updatedAt" bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.Firstname + " " + u.Lastname)
}

// UserUpdate is the partial payload of PUT users/:id. Nil fields are left
// untouched by the backend.
type UserUpdate struct {
	Firstname    *string `json:"firstname,omitempty"`
	Lastname     *string `json:"lastname,omitempty"`
	Email        *string `json:"email,omitempty"`
	ContactPhone *string `json:"contactPhone,omitempty"`
	Address      *string `json:"address,omitempty"`
	ProfileURL   *string `json:"profileUrl,omitempty"`
	Role         *Role   `json:"role,omitempty"`
}
