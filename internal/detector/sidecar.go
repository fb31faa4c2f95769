package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"portal/internal/entity"
	"portal/internal/storage"
	"time"
)

// SidecarSuffix 检测结果与图片同目录，文件名追加该后缀
const SidecarSuffix = ".det.json"

// ErrNoResults 图片尚未检测过
var ErrNoResults = errors.New("detector: no detection results")

// SidecarStore reads and writes DetectionRecord documents next to the image
// they describe.
type SidecarStore struct {
	store storage.Storage
	now   func() time.Time
}

func NewSidecarStore(store storage.Storage) *SidecarStore {
	return &SidecarStore{store: store, now: time.Now}
}

// WithClock 替换时间来源
func (s *SidecarStore) WithClock(now func() time.Time) *SidecarStore {
	s.now = now
	return s
}

// SidecarKey 图片存储 key 对应的结果 key
func SidecarKey(imageKey string) string {
	return imageKey + SidecarSuffix
}

// Load 无结果时返回 ErrNoResults
func (s *SidecarStore) Load(ctx context.Context, imageKey string) (*entity.DetectionRecord, error) {
	data, err := s.store.Get(ctx, SidecarKey(imageKey))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoResults
		}
		return nil, err
	}
	var record entity.DetectionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode sidecar: %w", err)
	}
	if record.Results == nil {
		record.Results = []entity.Detection{}
	}
	return &record, nil
}

// Save 整体覆盖已有结果
func (s *SidecarStore) Save(ctx context.Context, imageKey, filename string, result Result) (*entity.DetectionRecord, error) {
	results := result.Detections
	if results == nil {
		results = []entity.Detection{}
	}
	record := &entity.DetectionRecord{
		ImageFilename: filename,
		UpdatedAt:     s.now().UTC().Format("2006-01-02T15:04:05Z"),
		Model:         result.Model,
		Fallback:      result.Fallback,
		Results:       results,
		Count:         len(results),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, SidecarKey(imageKey), data, "application/json"); err != nil {
		return nil, fmt.Errorf("write sidecar: %w", err)
	}
	return record, nil
}

func (s *SidecarStore) Delete(ctx context.Context, imageKey string) error {
	err := s.store.Delete(ctx, SidecarKey(imageKey))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
