package entity

import "time"

// DbUserImage 用户上传的检测图片。删除为逻辑删除。
type DbUserImage struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	UserID           uint      `gorm:"column:user_id;index;not null" json:"user_id"`
	ImagePath        string    `gorm:"column:image_path;type:varchar(255);not null" json:"image_path"`
	Filename         string    `gorm:"column:filename;type:varchar(255);index;not null" json:"filename"`
	OriginalFilename string    `gorm:"column:original_filename;type:varchar(255)" json:"original_filename"`
	ContentType      string    `gorm:"column:content_type;type:varchar(100)" json:"content_type"`
	Size             int64     `gorm:"column:size" json:"size"`
	UploadedAt       time.Time `gorm:"column:uploaded_at;index" json:"uploaded_at"`
	IsActive         bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	IsDeleted        bool      `gorm:"column:is_deleted;not null;default:false" json:"is_deleted"`
}

func (DbUserImage) TableName() string {
	return "user_images"
}

// ImageListItem 图片列表项，附带检测结果摘要
type ImageListItem struct {
	Image     DbUserImage
	Detected  bool
	Count     int
	UpdatedAt string
	Fallback  bool
}
