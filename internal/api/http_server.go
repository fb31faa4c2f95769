package api

import (
	"fmt"
	"html/template"
	"io"
	"portal/internal/auth"
	"portal/internal/config"
	"portal/internal/detector"
	"portal/internal/mail"
	"portal/internal/model"
	"portal/internal/service"
	"portal/internal/shogi"
	"portal/internal/storage"
	"portal/internal/web"
	"time"
)

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg         config.Config
	repo        model.Repository
	storage     storage.Storage
	authManager *auth.Manager
	templates   *template.Template
	limiter     *RateLimiter
	startedAt   time.Time
	authorize   func(*auth.Subject, auth.Resource, auth.Action) error

	// 服务层
	users     *service.UserService
	images    *service.ImageService
	addresses *service.AddressService
	detector  *detector.Handle
	kifu      *shogi.Store
	moves     shogi.MoveLog
	mailer    *mail.ContactSender
}

// Option 覆盖默认构建的依赖，主要用于测试
type Option func(*options)

type options struct {
	metrics  *detector.Metrics
	model    detector.Model
	hasModel bool
	moves    shogi.MoveLog
	dialer   mail.Dialer
}

// WithDetectorMetrics 使用已注册的检测指标
func WithDetectorMetrics(m *detector.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithDetectorModel 替换按配置创建的检测模型，nil 表示无模型
func WithDetectorModel(m detector.Model) Option {
	return func(o *options) {
		o.model = m
		o.hasModel = true
	}
}

func WithMoveLog(l shogi.MoveLog) Option {
	return func(o *options) { o.moves = l }
}

func WithMailDialer(d mail.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// NewHTTPHandler 创建 HTTP 处理器实例
func NewHTTPHandler(cfg config.Config, repo model.Repository, store storage.Storage, opts ...Option) (*HTTPHandler, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	expiry := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, expiry)
	if err != nil {
		return nil, err
	}

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	detModel := o.model
	if !o.hasModel {
		if detModel, err = detector.NewModel(cfg); err != nil {
			return nil, err
		}
	}
	handle := detector.NewHandle(cfg.DetectorModelName, detModel, detector.NewFallback(nil), o.metrics)

	kifu, err := shogi.NewStore(cfg.KifuDir)
	if err != nil {
		return nil, err
	}

	moves := o.moves
	if moves == nil {
		if moves, err = shogi.NewMoveLog(cfg); err != nil {
			return nil, err
		}
	}

	mailer := mail.NewContactSender(cfg)
	if o.dialer != nil {
		mailer = mailer.WithDialer(o.dialer)
	}

	images := service.NewImageService(repo, store, handle, o.metrics)

	return &HTTPHandler{
		cfg:         cfg,
		repo:        repo,
		storage:     store,
		authManager: authManager,
		templates:   tmpl,
		limiter:     NewRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		startedAt:   time.Now(),
		authorize:   auth.Authorize,
		users:       service.NewUserService(repo, images),
		images:      images,
		addresses:   service.NewAddressService(repo),
		detector:    handle,
		kifu:        kifu,
		moves:       moves,
		mailer:      mailer,
	}, nil
}

// Close 释放 move log 等外部连接
func (h *HTTPHandler) Close() error {
	if closer, ok := h.moves.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
