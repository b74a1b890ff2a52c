// Package types 定义 HTTP 请求与响应结构.
package types

import (
	"time"

	"github.com/yeisme/fileparser/pkg/internal/model"
)

// RegisterRequest 注册请求.
type RegisterRequest struct {
	Username string  `json:"username"            form:"username"  rule:"required,min=3,max=50,username"`
	Email    *string `json:"email,omitempty"     form:"email"     rule:"omitempty,email,max=255"`
	FullName string  `json:"full_name,omitempty" form:"full_name" rule:"max=100"`
	Password string  `json:"password"            form:"password"  rule:"required,min=8,max=100"`
}

// LoginRequest 登录请求，支持 JSON 与表单.
type LoginRequest struct {
	Username string `json:"username" form:"username" rule:"required"`
	Password string `json:"password" form:"password" rule:"required"`
}

// RefreshRequest 刷新令牌请求.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token" rule:"required"`
}

// TokenResponse 令牌对.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// UserResponse 对外可见的用户信息.
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     *string   `json:"email,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
	IsActive  bool      `json:"is_active"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserResponse 由模型构建.
func NewUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		IsActive:  u.IsActive,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserListRequest 用户分页.
type UserListRequest struct {
	Limit  int `form:"limit"  rule:"omitempty,min=1,max=100"`
	Offset int `form:"offset" rule:"omitempty,min=0"`
}

// UserListResponse 用户列表.
type UserListResponse struct {
	Users  []UserResponse `json:"users"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}
