// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// 用户角色
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User 对应于数据库中的 'users' 表。
// 用户由外部身份系统创建，本服务只读取 id、用户名与角色。
type User struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Role      string    `gorm:"type:varchar(20);not null;default:USER" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}

// UserRef 是会话视图中引用另一位用户的精简结构。
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Ref 返回用户的精简引用。
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username}
}
