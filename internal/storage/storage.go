package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"portal/internal/config"
)

const (
	TypeLocal = "local"
	TypeS3    = "s3"
	TypeOSS   = "oss"
	TypeCOS   = "cos"
	// TypeR2 Cloudflare R2，走 S3 协议
	TypeR2 = "r2"
)

var (
	// ErrNotFound 对象不存在
	ErrNotFound = errors.New("storage: object not found")
	// ErrEmptyPayload 拒绝保存空内容
	ErrEmptyPayload = errors.New("storage: empty payload")
)

// SaveOptions 描述一次上传：对象落在 Category/日期目录下，
// 文件名为 BaseName.Extension。BaseName 为空时用纳秒时间戳。
type SaveOptions struct {
	Category     string
	Extension    string
	BaseName     string
	ContentType  string
	SkipIfExists bool
}

// Storage persists binary objects. Save derives a dated key from the options
// and returns it; the other methods address objects by that key (prefix
// included), so a sidecar can live next to its image as key+suffix.
type Storage interface {
	Save(ctx context.Context, data []byte, opts SaveOptions) (string, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

var backends = map[string]func(config.Config) (Storage, error){
	TypeLocal: func(cfg config.Config) (Storage, error) { return NewLocalStorage(cfg.StorageLocalDir) },
	TypeS3:    NewS3Storage,
	TypeOSS:   NewOSSStorage,
	TypeCOS:   NewCOSStorage,
	TypeR2:    NewR2Storage,
}

// Backends 返回支持的 STORAGE_TYPE 取值
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStorage 按 STORAGE_TYPE 创建后端，空值视为 local
func NewStorage(cfg config.Config) (Storage, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.StorageType))
	if name == "" {
		name = TypeLocal
	}
	build, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("storage: unsupported type %q (want one of %s)", cfg.StorageType, strings.Join(Backends(), ", "))
	}
	return build(cfg)
}

// saveObject 是各后端 Save 的公共实现：生成 key、按需跳过已存在对象、再 Put
func saveObject(ctx context.Context, s Storage, prefix string, data []byte, opts SaveOptions) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyPayload
	}
	if err := checkContext(ctx); err != nil {
		return "", err
	}
	key := withPrefix(prefix, objectKey(opts))
	if opts.SkipIfExists {
		exists, err := s.Exists(ctx, key)
		if err != nil {
			return "", err
		}
		if exists {
			return key, nil
		}
	}
	if err := s.Put(ctx, key, data, opts.ContentType); err != nil {
		return "", err
	}
	return key, nil
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
