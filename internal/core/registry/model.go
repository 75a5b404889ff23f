package registry

import (
	"context"

	"github.com/ixugo/goddd/pkg/orm"
)

// Login 设备登录记录，只落库地址与账号，不保存密码与令牌
type Login struct {
	Address    string   `gorm:"primaryKey;column:address" json:"address"`
	Username   string   `gorm:"column:username;notNull;default:''" json:"username"`
	IsOnline   bool     `gorm:"column:is_online;notNull;default:FALSE" json:"is_online"`
	LoggedInAt orm.Time `gorm:"column:logged_in_at" json:"logged_in_at"`
	UpdatedAt  orm.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (*Login) TableName() string {
	return "preview_logins"
}

// Storer 登录记录持久化
type Storer interface {
	Save(ctx context.Context, login *Login) error
	SetOnline(ctx context.Context, address string, online bool) error
	Find(ctx context.Context, out *[]*Login) error
}
