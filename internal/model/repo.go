package model

import (
	"context"
	"portal/internal/entity"
)

// Repository 定义数据库操作接口
type Repository interface {
	// 用户管理
	CreateUser(ctx context.Context, user *entity.DbUser) error
	UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error
	GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error)
	GetUserByUsername(ctx context.Context, username string) (*entity.DbUser, error)
	GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error)
	ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error)
	FindUserConflicts(ctx context.Context, username, email string, excludeID uint) (usernameTaken, emailTaken bool, err error)
	// DeleteUser 在同一事务内删除用户及其地址、图片记录，返回被删除的图片记录
	DeleteUser(ctx context.Context, id uint) ([]entity.DbUserImage, error)
	CountUsers(ctx context.Context) (int64, error)
	RecordLogin(ctx context.Context, id uint) error
	RecordFailedLogin(ctx context.Context, id uint) error

	// 地址
	ListAddresses(ctx context.Context, userID uint) ([]entity.DbAddress, error)
	GetAddress(ctx context.Context, id, userID uint) (*entity.DbAddress, error)
	CreateAddress(ctx context.Context, address *entity.DbAddress) error
	UpdateAddress(ctx context.Context, id, userID uint, updates entity.AddressUpdates) error
	DeleteAddress(ctx context.Context, id, userID uint) error
	SetDefaultAddress(ctx context.Context, id, userID uint) error

	// 检测图片
	CreateImage(ctx context.Context, image *entity.DbUserImage) error
	GetActiveImage(ctx context.Context, id, userID uint) (*entity.DbUserImage, error)
	GetActiveImageByFilename(ctx context.Context, filename string, userID uint) (*entity.DbUserImage, error)
	ListActiveImages(ctx context.Context, userID uint) ([]entity.DbUserImage, error)
	SoftDeleteImage(ctx context.Context, id, userID uint) error

	// 系统信息
	DBInfo(ctx context.Context) (*entity.DBInfo, error)
}
