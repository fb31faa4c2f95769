package sql

import (
	"context"
	"fmt"
	"portal/internal/entity"
	"strings"
	"time"

	"gorm.io/gorm"
)

// CreateUser persists a new user record.
// 用户名、邮箱重复时返回 gorm.ErrDuplicatedKey（需开启 TranslateError）。
func (r *GormRepository) CreateUser(ctx context.Context, user *entity.DbUser) error {
	if err := r.ready(); err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user is nil")
	}
	return r.db.WithContext(ctx).Create(user).Error
}

// UpdateUser updates an existing user entry.
func (r *GormRepository) UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error {
	if err := r.ready(); err != nil {
		return err
	}
	if id == 0 {
		return fmt.Errorf("invalid user")
	}
	if updates.IsEmpty() {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.DbUser{}).Where("id = ?", id).Updates(updates.ToMap())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// GetUserByEmail loads a user by email.
func (r *GormRepository) GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return nil, fmt.Errorf("email is empty")
	}

	var user entity.DbUser
	if err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(trimmed)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername loads a user by username (case sensitive).
func (r *GormRepository) GetUserByUsername(ctx context.Context, username string) (*entity.DbUser, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return nil, fmt.Errorf("username is empty")
	}

	var user entity.DbUser
	if err := r.db.WithContext(ctx).Where("username = ?", trimmed).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID loads a user by ID.
func (r *GormRepository) GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	var user entity.DbUser
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns paginated users, newest first.
func (r *GormRepository) ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error) {
	if err := r.ready(); err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).Model(&entity.DbUser{})
	if params != nil {
		if trimmed := strings.TrimSpace(params.Role); trimmed != "" {
			query = query.Where("role = ?", trimmed)
		}
		if keyword := strings.TrimSpace(params.Keyword); keyword != "" {
			kw := "%" + strings.ToLower(keyword) + "%"
			query = query.Where("LOWER(email) LIKE ? OR LOWER(username) LIKE ?", kw, kw)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	var page entity.PageParams
	if params != nil {
		page = params.PageParams
	}
	page.Normalize(0)

	var users []entity.DbUser
	if err := query.Order("created_at DESC").Order("id DESC").Offset(page.Offset()).Limit(page.PageSize).Find(&users).Error; err != nil {
		return nil, nil, err
	}

	meta := entity.NewMeta(page, total)
	return users, meta, nil
}

// FindUserConflicts reports whether username / email already belong to a
// user other than excludeID. Pass excludeID 0 to check against everyone.
func (r *GormRepository) FindUserConflicts(ctx context.Context, username, email string, excludeID uint) (bool, bool, error) {
	if err := r.ready(); err != nil {
		return false, false, err
	}

	count := func(column, value string) (int64, error) {
		var n int64
		query := r.db.WithContext(ctx).Model(&entity.DbUser{})
		if column == "email" {
			query = query.Where("LOWER(email) = ?", strings.ToLower(value))
		} else {
			query = query.Where("username = ?", value)
		}
		if excludeID != 0 {
			query = query.Where("id <> ?", excludeID)
		}
		err := query.Count(&n).Error
		return n, err
	}

	var usernameTaken, emailTaken bool
	if trimmed := strings.TrimSpace(username); trimmed != "" {
		n, err := count("username", trimmed)
		if err != nil {
			return false, false, err
		}
		usernameTaken = n > 0
	}
	if trimmed := strings.TrimSpace(email); trimmed != "" {
		n, err := count("email", trimmed)
		if err != nil {
			return false, false, err
		}
		emailTaken = n > 0
	}
	return usernameTaken, emailTaken, nil
}

// DeleteUser removes a user together with addresses and image rows.
func (r *GormRepository) DeleteUser(ctx context.Context, id uint) ([]entity.DbUserImage, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid user id")
	}

	var images []entity.DbUserImage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Find(&images).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&entity.DbUserImage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&entity.DbAddress{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&entity.DbUser{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

// CountUsers returns total user count.
func (r *GormRepository) CountUsers(ctx context.Context) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.DbUser{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// RecordLogin 登录成功：更新最后登录时间、访问次数，并清零失败次数
func (r *GormRepository) RecordLogin(ctx context.Context, id uint) error {
	if err := r.ready(); err != nil {
		return err
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&entity.DbUser{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_login":     now,
		"access_count":   gorm.Expr("access_count + ?", 1),
		"login_attempts": 0,
	}).Error
}

// RecordFailedLogin 密码错误时累加失败次数
func (r *GormRepository) RecordFailedLogin(ctx context.Context, id uint) error {
	if err := r.ready(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&entity.DbUser{}).Where("id = ?", id).
		UpdateColumn("login_attempts", gorm.Expr("login_attempts + ?", 1)).Error
}
