package sql

import (
	"context"
	"fmt"
	"portal/internal/entity"
	"strings"

	"gorm.io/gorm"
)

func (r *GormRepository) CreateImage(ctx context.Context, image *entity.DbUserImage) error {
	if err := r.ready(); err != nil {
		return err
	}
	if image == nil || image.UserID == 0 {
		return fmt.Errorf("invalid image")
	}
	return r.db.WithContext(ctx).Create(image).Error
}

// GetActiveImage 仅返回属于 userID 且未删除的图片
func (r *GormRepository) GetActiveImage(ctx context.Context, id, userID uint) (*entity.DbUserImage, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var image entity.DbUserImage
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_active = ?", id, userID, true).
		First(&image).Error
	if err != nil {
		return nil, err
	}
	return &image, nil
}

func (r *GormRepository) GetActiveImageByFilename(ctx context.Context, filename string, userID uint) (*entity.DbUserImage, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var image entity.DbUserImage
	err := r.db.WithContext(ctx).
		Where("filename = ? AND user_id = ? AND is_active = ?", filename, userID, true).
		First(&image).Error
	if err != nil {
		return nil, err
	}
	return &image, nil
}

func (r *GormRepository) ListActiveImages(ctx context.Context, userID uint) ([]entity.DbUserImage, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var images []entity.DbUserImage
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("uploaded_at DESC").Order("id DESC").
		Find(&images).Error
	if err != nil {
		return nil, err
	}
	return images, nil
}

// SoftDeleteImage 逻辑删除：is_active=false, is_deleted=true
func (r *GormRepository) SoftDeleteImage(ctx context.Context, id, userID uint) error {
	if err := r.ready(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&entity.DbUserImage{}).
		Where("id = ? AND user_id = ? AND is_active = ?", id, userID, true).
		Updates(map[string]interface{}{"is_active": false, "is_deleted": true})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
