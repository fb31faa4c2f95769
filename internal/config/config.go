package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppName  string `env:"APP_NAME" envDefault:"portal"`

	DBType     string `env:"DBType" envDefault:"sqlite"`
	DSNURL     string `env:"DSN_URL" envDefault:""`
	DBUser     string `env:"DBUser" envDefault:""`
	DBPassword string `env:"DBPassword" envDefault:""`
	DBAddr     string `env:"DBAddr" envDefault:""`
	DBName     string `env:"DBName" envDefault:"portal"`
	DBPath     string `env:"DBPath" envDefault:"datas/portal.db"`
	DBPort     string `env:"DBPort" envDefault:"3306"`

	StorageType     string `env:"STORAGE_TYPE" envDefault:"local"`
	StorageLocalDir string `env:"STORAGE_LOCAL_DIR" envDefault:"datas/detector"`

	// S3 兼容存储配置
	StorageS3Region          string `env:"STORAGE_S3_REGION"`
	StorageS3Bucket          string `env:"STORAGE_S3_BUCKET"`
	StorageS3Prefix          string `env:"STORAGE_S3_PREFIX"`
	StorageS3Endpoint        string `env:"STORAGE_S3_ENDPOINT"`
	StorageS3AccessKeyID     string `env:"STORAGE_S3_ACCESS_KEY_ID"`
	StorageS3SecretAccessKey string `env:"STORAGE_S3_SECRET_ACCESS_KEY"`
	StorageS3SessionToken    string `env:"STORAGE_S3_SESSION_TOKEN"`
	StorageS3ForcePathStyle  bool   `env:"STORAGE_S3_FORCE_PATH_STYLE" envDefault:"false"`

	// 阿里云 OSS 存储配置
	StorageOSSEndpoint        string `env:"STORAGE_OSS_ENDPOINT"`
	StorageOSSBucket          string `env:"STORAGE_OSS_BUCKET"`
	StorageOSSPrefix          string `env:"STORAGE_OSS_PREFIX"`
	StorageOSSAccessKeyID     string `env:"STORAGE_OSS_ACCESS_KEY_ID"`
	StorageOSSAccessKeySecret string `env:"STORAGE_OSS_ACCESS_KEY_SECRET"`

	// 腾讯云 COS 存储配置
	StorageCOSBucketURL string `env:"STORAGE_COS_BUCKET_URL"`
	StorageCOSPrefix    string `env:"STORAGE_COS_PREFIX"`
	StorageCOSSecretID  string `env:"STORAGE_COS_SECRET_ID"`
	StorageCOSSecretKey string `env:"STORAGE_COS_SECRET_KEY"`

	// Cloudflare R2 存储配置
	StorageR2AccountID       string `env:"STORAGE_R2_ACCOUNT_ID"`
	StorageR2Endpoint        string `env:"STORAGE_R2_ENDPOINT"`
	StorageR2Region          string `env:"STORAGE_R2_REGION" envDefault:"auto"`
	StorageR2Bucket          string `env:"STORAGE_R2_BUCKET"`
	StorageR2Prefix          string `env:"STORAGE_R2_PREFIX"`
	StorageR2AccessKeyID     string `env:"STORAGE_R2_ACCESS_KEY_ID"`
	StorageR2SecretAccessKey string `env:"STORAGE_R2_SECRET_ACCESS_KEY"`

	JWTSecret            string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"portal"`
	JWTExpirationMinutes int    `env:"JWT_EXPIRATION_MINUTES" envDefault:"1440"`
	SessionCookieSecure  bool   `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	CSRFEnabled          bool   `env:"CSRF_ENABLED" envDefault:"true"`
	CSRFSecret           string `env:"CSRF_SECRET"`
	PasswordHashCost     int    `env:"PASSWORD_HASH_COST" envDefault:"10"`

	// 邮件配置
	MailServer            string `env:"MAIL_SERVER"`
	MailPort              int    `env:"MAIL_PORT" envDefault:"587"`
	MailUseTLS            bool   `env:"MAIL_USE_TLS" envDefault:"true"`
	MailUsername          string `env:"MAIL_USERNAME"`
	MailPassword          string `env:"MAIL_PASSWORD"`
	MailDefaultSender     string `env:"MAIL_DEFAULT_SENDER"`
	ContactCCEmail        string `env:"CC_EMAIL"`
	ContactBCCEmail       string `env:"BCC_EMAIL"`
	ContactReplyToEmail   string `env:"REPLY_TO_EMAIL"`
	ContactAttachmentPath string `env:"CONTACT_ATTACHMENT_PATH" envDefault:"go.mod"`

	// 物体检测配置
	DetectorBackend   string        `env:"DETECTOR_BACKEND" envDefault:"none"`
	DetectorModelName string        `env:"DETECTOR_MODEL_NAME" envDefault:"yolov8n"`
	DetectorURL       string        `env:"DETECTOR_URL"`
	DetectorAPIKey    string        `env:"DETECTOR_API_KEY"`
	DetectorTimeout   time.Duration `env:"DETECTOR_TIMEOUT" envDefault:"30s"`
	VolcengineAPIKey  string        `env:"VOLCENGINE_API_KEY" envDefault:""`
	VolcengineModel   string        `env:"VOLCENGINE_VISION_MODEL" envDefault:"doubao-1-5-vision-pro-32k-250115"`
	MaxUploadBytes    int64         `env:"MAX_UPLOAD_BYTES" envDefault:"16777216"`

	// 将棋配置
	KifuDir          string        `env:"KIFU_DIR" envDefault:"datas/kifu"`
	MoveLogBackend   string        `env:"MOVELOG_BACKEND" envDefault:"memory"`
	MoveLogTTL       time.Duration `env:"MOVELOG_TTL" envDefault:"24h"`
	RedisAddr        string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	RateLimitPerSec  int           `env:"RATE_LIMIT_PER_SEC" envDefault:"5"`
	RateLimitBurst   int           `env:"RATE_LIMIT_BURST" envDefault:"10"`
	CORSAllowOrigins []string      `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:8080"`

	// 初始管理员（为空则跳过）
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// LoadEnvFile 加载 .env 文件，文件不存在时忽略
func LoadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// DefaultJWTSecret 仅供本地开发
const DefaultJWTSecret = "dev-secret-change-me"

// ParseConfig 从环境变量解析配置并校验
func ParseConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret == DefaultJWTSecret {
		logrus.Warn("JWT_SECRET is the development default, set it before deploying")
	}
	logrus.WithFields(logrus.Fields{
		"db":        cfg.DBType,
		"storage":   cfg.StorageType,
		"detector":  cfg.DetectorBackend,
		"move_log":  cfg.MoveLogBackend,
		"mail":      cfg.MailServer != "",
		"log_level": cfg.LogLevel,
	}).Debug("config loaded")
	return cfg, nil
}

// Validate 检查取值范围，一次返回全部问题
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.JWTExpirationMinutes <= 0 {
		errs = append(errs, fmt.Errorf("JWT_EXPIRATION_MINUTES must be positive, got %d", c.JWTExpirationMinutes))
	}
	if c.PasswordHashCost < 4 || c.PasswordHashCost > 31 {
		errs = append(errs, fmt.Errorf("PASSWORD_HASH_COST must be within [4, 31], got %d", c.PasswordHashCost))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes))
	}
	switch strings.ToLower(c.MoveLogBackend) {
	case "", "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("MOVELOG_BACKEND must be memory or redis, got %q", c.MoveLogBackend))
	}
	if c.RateLimitPerSec < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_SEC and RATE_LIMIT_BURST must not be negative"))
	}
	return errors.Join(errs...)
}
