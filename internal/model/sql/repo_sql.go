package sql

import (
	"context"
	"fmt"
	"portal/internal/entity"

	"gorm.io/gorm"
)

// GormRepository implements Repository using GORM
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new repository instance
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

var errNotInitialised = fmt.Errorf("repository not initialised")

func (r *GormRepository) ready() error {
	if r == nil || r.db == nil {
		return errNotInitialised
	}
	return nil
}

// DBInfo 返回方言、连接池统计与用户总数
func (r *GormRepository) DBInfo(ctx context.Context) (*entity.DBInfo, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}
	stats := sqlDB.Stats()

	info := &entity.DBInfo{
		Dialect:         r.db.Dialector.Name(),
		MaxOpen:         stats.MaxOpenConnections,
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
	}
	if err := r.db.WithContext(ctx).Model(&entity.DbUser{}).Count(&info.UserCount).Error; err != nil {
		return nil, err
	}
	return info, nil
}
