package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"portal/internal/entity"
	"strings"
	"time"
)

// HTTPModel 调用外部推理服务：GET /health 判断可用，POST /predict 上传图片
type HTTPModel struct {
	baseURL string
	apiKey  string
	name    string
	client  *http.Client
}

func NewHTTPModel(baseURL, apiKey, name string, timeout time.Duration) (*HTTPModel, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("detector: missing DETECTOR_URL for http backend")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if name = strings.TrimSpace(name); name == "" {
		name = "yolov8n"
	}
	return &HTTPModel{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		name:    name,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (m *HTTPModel) Name() string { return m.name }

func (m *HTTPModel) Load(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	m.authorize(req)
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("detector health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("detector health: http %d", resp.StatusCode)
	}
	return nil
}

// predictResponse 兼容两种返回：bbox 形式与 YOLO 的 x1,y1,x2,y2 形式
type predictResponse struct {
	Detections  []predictItem `json:"detections"`
	Predictions []predictItem `json:"predictions"`
}

type predictItem struct {
	Class      string              `json:"class"`
	Name       string              `json:"name"`
	Confidence float64             `json:"confidence"`
	BBox       *entity.BoundingBox `json:"bbox"`
	X1         *float64            `json:"x1"`
	Y1         *float64            `json:"y1"`
	X2         *float64            `json:"x2"`
	Y2         *float64            `json:"y2"`
}

func (m *HTTPModel) Predict(ctx context.Context, image []byte, contentType string) ([]entity.Detection, error) {
	if len(image) == 0 {
		return nil, errors.New("detector: empty image")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/predict", bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	m.authorize(req)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector predict: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("detector predict: read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("detector predict: http %d: %s", resp.StatusCode, snippet(body))
	}
	return parsePredictResponse(body)
}

func parsePredictResponse(body []byte) ([]entity.Detection, error) {
	var payload predictResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("detector predict: decode: %w", err)
	}
	items := payload.Detections
	if items == nil {
		items = payload.Predictions
	}
	if items == nil {
		return nil, errors.New("detector predict: response has no detections")
	}

	out := make([]entity.Detection, 0, len(items))
	for _, item := range items {
		class := item.Class
		if class == "" {
			class = item.Name
		}
		d := entity.Detection{Class: class, Confidence: item.Confidence}
		switch {
		case item.BBox != nil:
			d.BBox = *item.BBox
		case item.X1 != nil && item.Y1 != nil && item.X2 != nil && item.Y2 != nil:
			d.BBox = entity.BoundingBox{
				X:      int(*item.X1),
				Y:      int(*item.Y1),
				Width:  int(*item.X2 - *item.X1),
				Height: int(*item.Y2 - *item.Y1),
			}
		default:
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *HTTPModel) authorize(req *http.Request) {
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len([]rune(s)) > limit {
		return string([]rune(s)[:limit]) + "..."
	}
	return s
}
