package sql

import (
	"context"
	"fmt"
	"portal/internal/entity"

	"gorm.io/gorm"
)

// ListAddresses 默认地址排在最前
func (r *GormRepository) ListAddresses(ctx context.Context, userID uint) ([]entity.DbAddress, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var addresses []entity.DbAddress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("is_default DESC").Order("id ASC").
		Find(&addresses).Error
	if err != nil {
		return nil, err
	}
	return addresses, nil
}

func (r *GormRepository) GetAddress(ctx context.Context, id, userID uint) (*entity.DbAddress, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var address entity.DbAddress
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_active = ?", id, userID, true).
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// CreateAddress 新地址为默认时，同一事务内清除其它默认标记
func (r *GormRepository) CreateAddress(ctx context.Context, address *entity.DbAddress) error {
	if err := r.ready(); err != nil {
		return err
	}
	if address == nil || address.UserID == 0 {
		return fmt.Errorf("invalid address")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if address.IsDefault {
			if err := clearDefaultAddress(tx, address.UserID); err != nil {
				return err
			}
		}
		return tx.Create(address).Error
	})
}

func (r *GormRepository) UpdateAddress(ctx context.Context, id, userID uint, updates entity.AddressUpdates) error {
	if err := r.ready(); err != nil {
		return err
	}
	if updates.IsEmpty() {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.DbAddress{}).
			Where("id = ? AND user_id = ? AND is_active = ?", id, userID, true).
			Updates(updates.ToMap())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *GormRepository) DeleteAddress(ctx context.Context, id, userID uint) error {
	if err := r.ready(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&entity.DbAddress{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetDefaultAddress 每个用户至多一个默认地址
func (r *GormRepository) SetDefaultAddress(ctx context.Context, id, userID uint) error {
	if err := r.ready(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var address entity.DbAddress
		if err := tx.Where("id = ? AND user_id = ? AND is_active = ?", id, userID, true).First(&address).Error; err != nil {
			return err
		}
		if err := clearDefaultAddress(tx, userID); err != nil {
			return err
		}
		return tx.Model(&entity.DbAddress{}).Where("id = ?", id).Update("is_default", true).Error
	})
}

func clearDefaultAddress(tx *gorm.DB, userID uint) error {
	return tx.Model(&entity.DbAddress{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}
