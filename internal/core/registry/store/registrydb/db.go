package registrydb

import (
	"context"

	"github.com/gowvp/livepreview/internal/core/registry"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ registry.Storer = DB{}

// DB 登录记录的 gorm 实现
type DB struct {
	db *gorm.DB
}

func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// AutoMigrate 表迁移
func (d DB) AutoMigrate(ok bool) DB {
	if !ok {
		return d
	}
	if err := d.db.AutoMigrate(new(registry.Login)); err != nil {
		panic(err)
	}
	return d
}

// Save 按地址覆盖写入
func (d DB) Save(ctx context.Context, login *registry.Login) error {
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "is_online", "logged_in_at", "updated_at"}),
	}).Create(login).Error
	if err != nil {
		return reason.ErrDB.Withf(`Save err[%s]`, err.Error())
	}
	return nil
}

// SetOnline 更新在线状态
func (d DB) SetOnline(ctx context.Context, address string, online bool) error {
	err := d.db.WithContext(ctx).Model(new(registry.Login)).
		Where("address=?", address).
		Updates(map[string]any{"is_online": online, "updated_at": orm.Now()}).Error
	if err != nil {
		return reason.ErrDB.Withf(`SetOnline err[%s]`, err.Error())
	}
	return nil
}

// Find 全部登录记录，按地址排序
func (d DB) Find(ctx context.Context, out *[]*registry.Login) error {
	if err := d.db.WithContext(ctx).Order("address").Find(out).Error; err != nil {
		return reason.ErrDB.Withf(`Find err[%s]`, err.Error())
	}
	return nil
}
