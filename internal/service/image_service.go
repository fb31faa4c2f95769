package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"portal/internal/detector"
	"portal/internal/entity"
	"portal/internal/model"
	"portal/internal/storage"
	"portal/internal/validators"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UploadCategory 上传图片的存储目录
const UploadCategory = "uploads"

// ImageService 图片上传、检测与结果缓存
type ImageService struct {
	repo     model.Repository
	store    storage.Storage
	sidecars *detector.SidecarStore
	handle   *detector.Handle
	metrics  *detector.Metrics
	now      func() time.Time
}

func NewImageService(repo model.Repository, store storage.Storage, handle *detector.Handle, metrics *detector.Metrics) *ImageService {
	return &ImageService{
		repo:     repo,
		store:    store,
		sidecars: detector.NewSidecarStore(store),
		handle:   handle,
		metrics:  metrics,
		now:      time.Now,
	}
}

// storedName YYYYmmdd_HHMMSS_<uuid 前 8 位>
func (s *ImageService) storedName() string {
	return s.now().Format("20060102_150405") + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Upload 保存通过校验的图片并写入 user_images
func (s *ImageService) Upload(ctx context.Context, userID uint, img *validators.UploadedImage) (*entity.DbUserImage, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, validators.ErrNoFile
	}
	base := s.storedName()
	key, err := s.store.Save(ctx, img.Data, storage.SaveOptions{
		Category:    UploadCategory,
		BaseName:    base,
		Extension:   img.Extension,
		ContentType: img.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	record := &entity.DbUserImage{
		UserID:           userID,
		ImagePath:        key,
		Filename:         path.Base(key),
		OriginalFilename: img.OriginalFilename,
		ContentType:      img.ContentType,
		Size:             int64(len(img.Data)),
		UploadedAt:       s.now().UTC(),
		IsActive:         true,
	}
	if err := s.repo.CreateImage(ctx, record); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			logrus.WithError(delErr).WithField("key", key).Warn("failed to remove orphan upload")
		}
		return nil, err
	}
	return record, nil
}

// Get 只返回当前用户未删除的图片
func (s *ImageService) Get(ctx context.Context, id, userID uint) (*entity.DbUserImage, error) {
	image, err := s.repo.GetActiveImage(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, err
	}
	return image, nil
}

// Detect returns the cached sidecar when one exists and force is false;
// otherwise it runs the model (or the fallback) and overwrites the sidecar.
func (s *ImageService) Detect(ctx context.Context, id, userID uint, force bool) (*entity.DbUserImage, *entity.DetectionRecord, error) {
	image, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, nil, err
	}

	if !force {
		record, err := s.sidecars.Load(ctx, image.ImagePath)
		switch {
		case err == nil:
			s.metrics.SidecarHit()
			return image, record, nil
		case !errors.Is(err, detector.ErrNoResults):
			logrus.WithError(err).WithField("image_id", image.ID).Warn("failed to read detection sidecar")
		}
	}

	data, err := s.store.Get(ctx, image.ImagePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return image, nil, ErrImageFileMissing
		}
		return image, nil, err
	}

	result := s.handle.Detect(ctx, data, image.ContentType)
	if result.Fallback {
		logrus.WithFields(logrus.Fields{"image_id": image.ID, "count": len(result.Detections)}).Info("detector_fallback_used")
	}
	record, err := s.sidecars.Save(ctx, image.ImagePath, image.Filename, result)
	if err != nil {
		return image, nil, err
	}
	return image, record, nil
}

// Results 读取已保存的检测结果，未检测时返回 detector.ErrNoResults
func (s *ImageService) Results(ctx context.Context, id, userID uint) (*entity.DbUserImage, *entity.DetectionRecord, error) {
	image, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, nil, err
	}
	record, err := s.sidecars.Load(ctx, image.ImagePath)
	if err != nil {
		return image, nil, err
	}
	return image, record, nil
}

// List 当前用户的图片（新的在前），附带检测结果摘要
func (s *ImageService) List(ctx context.Context, userID uint) ([]entity.ImageListItem, error) {
	images, err := s.repo.ListActiveImages(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]entity.ImageListItem, 0, len(images))
	for _, image := range images {
		item := entity.ImageListItem{Image: image}
		record, err := s.sidecars.Load(ctx, image.ImagePath)
		switch {
		case err == nil:
			item.Detected = true
			item.Count = record.Count
			item.UpdatedAt = record.UpdatedAt
			item.Fallback = record.Fallback
		case !errors.Is(err, detector.ErrNoResults):
			logrus.WithError(err).WithField("image_id", image.ID).Debug("skip unreadable sidecar")
		}
		items = append(items, item)
	}
	return items, nil
}

// Delete removes the stored file and sidecar best effort, then marks the
// row inactive and deleted.
func (s *ImageService) Delete(ctx context.Context, id, userID uint) error {
	image, err := s.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	s.removeFiles(ctx, image)
	if err := s.repo.SoftDeleteImage(ctx, image.ID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrImageNotFound
		}
		return err
	}
	return nil
}

// Open 按文件名读取图片内容，校验归属
func (s *ImageService) Open(ctx context.Context, filename string, userID uint) (*entity.DbUserImage, []byte, error) {
	filename = path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if filename == "." || filename == "/" || strings.HasSuffix(filename, detector.SidecarSuffix) {
		return nil, nil, ErrImageNotFound
	}
	image, err := s.repo.GetActiveImageByFilename(ctx, filename, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrImageNotFound
		}
		return nil, nil, err
	}
	data, err := s.store.Get(ctx, image.ImagePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return image, nil, ErrImageFileMissing
		}
		return image, nil, err
	}
	return image, data, nil
}

func (s *ImageService) removeFiles(ctx context.Context, image *entity.DbUserImage) {
	logger := logrus.WithFields(logrus.Fields{"image_id": image.ID, "key": image.ImagePath})
	if err := s.store.Delete(ctx, image.ImagePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.WithError(err).Warn("failed to remove image file")
	}
	if err := s.sidecars.Delete(ctx, image.ImagePath); err != nil {
		logger.WithError(err).Warn("failed to remove detection sidecar")
	}
}
