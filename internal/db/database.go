package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Mieluoxxx/Siriusx-Router/internal/config"
	"github.com/Mieluoxxx/Siriusx-Router/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDatabase 初始化数据库连接
// sqlite 用于本地运行，postgres 对接托管数据库
func InitDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	// 获取底层 SQL DB 以配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.WithFields(log.Fields{
		"driver":    cfg.Driver,
		"max_open":  cfg.MaxOpenConns,
		"max_idle":  cfg.MaxIdleConns,
		"life_time": cfg.ConnMaxLifetime,
	}).Info("database connected")

	return db, nil
}

func openDialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	case config.DriverSQLite, "":
		// 确保数据目录存在
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		return sqlite.Open(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// AutoMigrate 自动迁移所有数据模型
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Provider{},
		&models.UsageLog{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	log.Info("database migrated: ai_providers, ai_usage_logs")
	return nil
}

// CloseDatabase 关闭数据库连接
func CloseDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	log.Info("database connection closed")
	return nil
}
