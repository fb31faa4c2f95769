package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"portal/internal/config"
	"portal/internal/entity"
	"portal/internal/model/sql"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	DBTypeMySQL    = "mysql"
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"
)

const defaultSQLitePath = "datas/portal.db"

// InitRepository 打开数据库、迁移表结构并返回仓库；DBType 为空时使用 SQLite
func InitRepository(cfg *config.Config) (Repository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := OpenGormDB(dialector)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", dialector.Name(), err)
	}
	if err := MigrateSchema(db); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	logrus.WithField("dialect", dialector.Name()).Info("database ready")
	return sql.NewGormRepository(db), nil
}

// Dialector 按 DBType 选择驱动。DSN_URL 优先，其次由分项配置拼出 DSN。
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DBType)) {
	case "", DBTypeSQLite:
		path := cfg.DBPath
		if path == "" {
			path = defaultSQLitePath
		}
		// 文件由驱动创建，目录需要事先存在
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir %q: %w", dir, err)
			}
		}
		return sqlite.Open(path), nil
	case DBTypeMySQL:
		return mysql.Open(firstNonEmpty(cfg.DSNURL, mysqlDSN(cfg))), nil
	case DBTypePostgres:
		return postgres.Open(firstNonEmpty(cfg.DSNURL, postgresDSN(cfg))), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}
}

func mysqlDSN(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.DBUser, cfg.DBPassword, cfg.DBAddr, cfg.DBPort, cfg.DBName)
}

func postgresDSN(cfg *config.Config) string {
	port := cfg.DBPort
	if port == "" || port == "3306" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBAddr, cfg.DBUser, cfg.DBPassword, cfg.DBName, port)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// OpenGormDB 打开连接，SQL 日志走 logrus。
// TranslateError 让唯一约束冲突以 gorm.ErrDuplicatedKey 返回。
func OpenGormDB(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(logrus.StandardLogger(), logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NamingStrategy:                           schema.NamingStrategy{SingularTable: true},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite 单写者，多连接只会带来 database is locked
	if dialector.Name() == DBTypeSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// MigrateSchema 迁移数据库表结构
func MigrateSchema(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.DbUser{},
		&entity.DbAddress{},
		&entity.DbUserImage{},
	)
}
