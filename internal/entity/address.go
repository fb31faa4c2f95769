package entity

import "time"

// DbAddress 用户的收货地址
type DbAddress struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	UserID       uint      `gorm:"column:user_id;index;not null" json:"user_id"`
	Name         string    `gorm:"column:name;type:varchar(100);not null" json:"name"`
	PostalCode   string    `gorm:"column:postal_code;type:varchar(10)" json:"postal_code"`
	Prefecture   string    `gorm:"column:prefecture;type:varchar(20)" json:"prefecture"`
	City         string    `gorm:"column:city;type:varchar(50)" json:"city"`
	AddressLine1 string    `gorm:"column:address_line1;type:varchar(100)" json:"address_line1"`
	AddressLine2 string    `gorm:"column:address_line2;type:varchar(100)" json:"address_line2"`
	Phone        string    `gorm:"column:phone;type:varchar(20)" json:"phone"`
	IsDefault    bool      `gorm:"column:is_default;not null;default:false" json:"is_default"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
}

func (DbAddress) TableName() string {
	return "addresses"
}

// AddressForm 地址表单
type AddressForm struct {
	AddressID    uint   `form:"address_id"`
	Name         string `form:"name"`
	PostalCode   string `form:"postal_code"`
	Prefecture   string `form:"prefecture"`
	City         string `form:"city"`
	AddressLine1 string `form:"address_line1"`
	AddressLine2 string `form:"address_line2"`
	Phone        string `form:"phone"`
	IsDefault    bool   `form:"is_default"`
}
