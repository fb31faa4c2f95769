package detector

import (
	"context"
	"fmt"
	"math"
	"portal/internal/config"
	"portal/internal/entity"
	"strings"
)

const (
	BackendNone       = "none"
	BackendHTTP       = "http"
	BackendVolcengine = "volcengine"
)

// Model 物体检测模型。Load 只会被 Handle 调用一次。
type Model interface {
	Name() string
	Load(ctx context.Context) error
	Predict(ctx context.Context, image []byte, contentType string) ([]entity.Detection, error)
}

// NewModel 根据 DETECTOR_BACKEND 创建模型；none 返回 nil，表示始终走兜底结果
func NewModel(cfg config.Config) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DetectorBackend)) {
	case "", BackendNone:
		return nil, nil
	case BackendHTTP:
		return NewHTTPModel(cfg.DetectorURL, cfg.DetectorAPIKey, cfg.DetectorModelName, cfg.DetectorTimeout)
	case BackendVolcengine:
		return NewArkModel(cfg.VolcengineAPIKey, cfg.VolcengineModel)
	default:
		return nil, fmt.Errorf("unsupported detector backend: %s", cfg.DetectorBackend)
	}
}

// normalizeDetections 置信度保留两位小数，负坐标截为 0
func normalizeDetections(in []entity.Detection) []entity.Detection {
	out := make([]entity.Detection, 0, len(in))
	for _, d := range in {
		d.Class = strings.TrimSpace(d.Class)
		if d.Class == "" {
			continue
		}
		d.Confidence = round2(d.Confidence)
		d.BBox.X = max(0, d.BBox.X)
		d.BBox.Y = max(0, d.BBox.Y)
		d.BBox.Width = max(0, d.BBox.Width)
		d.BBox.Height = max(0, d.BBox.Height)
		out = append(out, d)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
