package detector

import (
	"context"
	"portal/internal/entity"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Result 一次检测的输出
type Result struct {
	Detections []entity.Detection
	Model      string
	Fallback   bool
}

// modelLoadTimeout 单次加载的上限，与请求的 ctx 无关
const modelLoadTimeout = 30 * time.Second

// Handle owns the detection model for the process lifetime. The model is
// loaded lazily on the first Detect call. Only a successful load is kept; after
// a failure the call falls back and the next Detect tries again.
type Handle struct {
	name     string
	model    Model
	fallback *Fallback
	metrics  *Metrics

	loadMu  sync.Mutex
	mu      sync.Mutex
	loaded  bool
	loadErr error
}

// NewHandle name 写入检测记录的 model 字段；model 可以为 nil（无模型，始终兜底）
func NewHandle(name string, model Model, fallback *Fallback, metrics *Metrics) *Handle {
	if fallback == nil {
		fallback = NewFallback(nil)
	}
	if name == "" && model != nil {
		name = model.Name()
	}
	return &Handle{name: name, model: model, fallback: fallback, metrics: metrics}
}

// Ready 报告模型是否已成功加载
func (h *Handle) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

func (h *Handle) ModelName() string {
	return h.name
}

// load 在 loadMu 下串行执行；请求取消不会中断加载，失败后留给下一次请求重试
func (h *Handle) load(ctx context.Context) {
	if h.model == nil || h.Ready() {
		return
	}
	h.loadMu.Lock()
	defer h.loadMu.Unlock()
	if h.Ready() {
		return
	}

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), modelLoadTimeout)
	defer cancel()
	err := h.model.Load(loadCtx)

	h.mu.Lock()
	h.loaded = err == nil
	h.loadErr = err
	h.mu.Unlock()
	if err != nil {
		logrus.WithError(err).WithField("model", h.model.Name()).Warn("detector_model_load_failed")
		return
	}
	logrus.WithField("model", h.model.Name()).Info("detector_model_loaded")
}

// Detect 运行检测；模型缺失、加载失败或推理失败时返回兜底结果，不返回错误
func (h *Handle) Detect(ctx context.Context, image []byte, contentType string) Result {
	start := time.Now()
	h.load(ctx)

	result := h.run(ctx, image, contentType)
	h.metrics.observeRun(result.Fallback, time.Since(start).Seconds())
	return result
}

func (h *Handle) run(ctx context.Context, image []byte, contentType string) Result {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.model != nil && h.loaded {
		detections, err := h.model.Predict(ctx, image, contentType)
		if err == nil {
			return Result{Detections: normalizeDetections(detections), Model: h.name}
		}
		logrus.WithError(err).WithField("model", h.model.Name()).Warn("detector_fallback")
	}
	return Result{Detections: h.fallback.Generate(), Model: h.name, Fallback: true}
}
