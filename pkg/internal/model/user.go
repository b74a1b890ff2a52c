package model

import "time"

// User 注册用户.
// Email 为空时存 NULL，唯一索引允许多个用户不填邮箱.
type User struct {
	ID             uint      `gorm:"primaryKey"                    json:"id"`
	Username       string    `gorm:"size:50;not null;uniqueIndex"  json:"username"`
	Email          *string   `gorm:"size:255;uniqueIndex"          json:"email,omitempty"`
	FullName       string    `gorm:"size:100"                      json:"full_name,omitempty"`
	HashedPassword string    `gorm:"size:255;not null"             json:"-"`
	IsActive       bool      `gorm:"not null"                      json:"is_active"`
	IsAdmin        bool      `gorm:"not null"                      json:"is_admin"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 表名.
func (User) TableName() string {
	return "users"
}

// Models 需要迁移的全部模型.
func Models() []any {
	return []any{&User{}, &FileRecord{}}
}
