package entity

import "time"

const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "user"
)

const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// DbUser represents a persisted user account.
type DbUser struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Username      string     `gorm:"column:username;type:varchar(64);uniqueIndex;not null" json:"username"`
	Email         string     `gorm:"column:email;type:varchar(120);uniqueIndex;not null" json:"email"`
	PasswordHash  string     `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	Role          string     `gorm:"column:role;type:varchar(20);index;not null;default:user" json:"role"`
	IsAdmin       bool       `gorm:"column:is_admin;not null;default:false" json:"is_admin"`
	IsActive      bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Organization  string     `gorm:"column:organization;type:varchar(100)" json:"organization"`
	Status        string     `gorm:"column:status;type:varchar(20);default:active" json:"status"`
	LastLogin     *time.Time `gorm:"column:last_login" json:"last_login,omitempty"`
	AccessCount   int        `gorm:"column:access_count;not null;default:0" json:"access_count"`
	LoginAttempts int        `gorm:"column:login_attempts;not null;default:0" json:"login_attempts"`
}

// TableName overrides default pluralised name.
func (DbUser) TableName() string {
	return "users"
}

// UserSummary is a lightweight user description returned to clients.
type UserSummary struct {
	ID           uint       `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	IsAdmin      bool       `json:"is_admin"`
	IsActive     bool       `json:"is_active"`
	Organization string     `json:"organization,omitempty"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	AccessCount  int        `json:"access_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserQuery supports listing users with pagination.
type UserQuery struct {
	PageParams
	Role    string `json:"role" form:"role" query:"role"`
	Keyword string `json:"keyword" form:"keyword" query:"keyword"`
}

type AuthLoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type AuthRegisterRequest struct {
	Username        string `json:"username" form:"username"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm"`
}

type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserSummary `json:"user"`
}

// UserCreateRequest 管理员创建用户
type UserCreateRequest struct {
	Username        string `json:"username" form:"username"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm"`
	Organization    string `json:"organization" form:"organization"`
	IsAdmin         bool   `json:"is_admin" form:"is_admin"`
	IsActive        *bool  `json:"is_active"`
}

// UserUpdateRequest 管理员或本人更新用户；nil 字段保持不变
type UserUpdateRequest struct {
	Username        *string `json:"username,omitempty"`
	Email           *string `json:"email,omitempty"`
	Password        *string `json:"password,omitempty"`
	PasswordConfirm *string `json:"password_confirm,omitempty"`
	Organization    *string `json:"organization,omitempty"`
	IsAdmin         *bool   `json:"is_admin,omitempty"`
	IsActive        *bool   `json:"is_active,omitempty"`
}

type UserListResponse struct {
	Users []UserSummary `json:"users"`
	Meta  *Meta         `json:"meta"`
}
