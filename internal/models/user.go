package models

import "time"

// Account roles. The first registered account becomes the site owner.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// UserModel represents a site account.
type UserModel struct {
	Base
	Username      string     `json:"username"        gorm:"uniqueIndex;not null"`
	Name          string     `json:"name"`
	Avatar        string     `json:"avatar"`
	Password      string     `json:"-"               gorm:"not null"`
	Role          string     `json:"role"            gorm:"type:varchar(16);not null;default:member"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip"`
}

func (UserModel) TableName() string { return "users" }

// IsOwner reports whether the account is the site owner.
func (u *UserModel) IsOwner() bool { return u.Role == RoleOwner }
