package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 环境变量名
const (
	EnvConfigPath     = "CONFIG_PATH"
	EnvServerPort     = "SERVER_PORT"
	EnvLogLevel       = "LOG_LEVEL"
	EnvAdminKey       = "ADMIN_KEY"
	EnvDatabaseDriver = "DATABASE_DRIVER"
	EnvDatabasePath   = "DATABASE_PATH"
	EnvDatabaseDSN    = "DATABASE_DSN"
	EnvRedisAddr      = "REDIS_ADDR"
	EnvEncryptionKey  = "ENCRYPTION_KEY"
)

// 数据库驱动
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// 会话计数后端
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`            // sqlite / postgres
	Path            string        `yaml:"path"`              // sqlite 文件路径
	DSN             string        `yaml:"dsn"`               // postgres 连接串
	MaxOpenConns    int           `yaml:"max_open_conns"`    // 最大连接数
	MaxIdleConns    int           `yaml:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"` // 连接最大生命周期
	AutoMigrate     bool          `yaml:"auto_migrate"`      // 是否自动迁移
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port        int      `yaml:"port"`
	LogLevel    string   `yaml:"log_level"`
	LogFormat   string   `yaml:"log_format"` // text / json
	AdminKey    string   `yaml:"admin_key"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// RouterConfig 路由默认参数
type RouterConfig struct {
	Timeout               time.Duration `yaml:"timeout"`
	MaxRetriesPerProvider int           `yaml:"max_retries_per_provider"`
	DefaultDailyLimit     int           `yaml:"default_daily_limit"`
	SessionProviderLimit  int           `yaml:"session_provider_limit"` // 0 表示不限制
}

// SessionConfig 会话计数配置
type SessionConfig struct {
	Backend       string `yaml:"backend"` // memory / redis
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
	RunID         string `yaml:"run_id"` // 为空时每次启动生成，多副本设置相同值以共享计数
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"` // Base64 编码的 32 字节密钥
}

// Config 应用配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Router   RouterConfig   `yaml:"router"`
	Session  SessionConfig  `yaml:"session"`
	Security SecurityConfig `yaml:"security"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      8080,
			LogLevel:  "info",
			LogFormat: "text",
		},
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            "./data/siriusx-router.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			AutoMigrate:     true,
		},
		Router: RouterConfig{
			Timeout:               8 * time.Second,
			MaxRetriesPerProvider: 1,
			DefaultDailyLimit:     50,
		},
		Session: SessionConfig{
			Backend:     SessionBackendMemory,
			RedisPrefix: "siriusx:session",
		},
	}
}

// ResolveConfigPath 规范化配置文件路径
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// LoadConfig 加载配置
// 顺序: 默认值 < YAML 文件 < 环境变量；文件不存在时跳过
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
				return nil, fmt.Errorf("parse config file: %w", errUnmarshal)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv(EnvServerPort)); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		cfg.Server.LogLevel = level
	}
	if key := strings.TrimSpace(os.Getenv(EnvAdminKey)); key != "" {
		cfg.Server.AdminKey = key
	}
	if driver := strings.TrimSpace(os.Getenv(EnvDatabaseDriver)); driver != "" {
		cfg.Database.Driver = strings.ToLower(driver)
	}
	if dbPath := strings.TrimSpace(os.Getenv(EnvDatabasePath)); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if dsn := strings.TrimSpace(os.Getenv(EnvDatabaseDSN)); dsn != "" {
		cfg.Database.DSN = dsn
		if os.Getenv(EnvDatabaseDriver) == "" {
			cfg.Database.Driver = DriverPostgres
		}
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		cfg.Session.RedisAddr = addr
		cfg.Session.Backend = SessionBackendRedis
	}
	if key := strings.TrimSpace(os.Getenv(EnvEncryptionKey)); key != "" {
		cfg.Security.EncryptionKey = key
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database.path is required for sqlite")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	switch c.Session.Backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if strings.TrimSpace(c.Session.RedisAddr) == "" {
			return errors.New("session.redis_addr is required for redis backend")
		}
	default:
		return fmt.Errorf("unsupported session backend: %q", c.Session.Backend)
	}

	if c.Router.Timeout <= 0 {
		return errors.New("router.timeout must be positive")
	}
	if c.Router.MaxRetriesPerProvider < 1 {
		return errors.New("router.max_retries_per_provider must be at least 1")
	}
	if c.Router.DefaultDailyLimit <= 0 {
		return errors.New("router.default_daily_limit must be positive")
	}
	if c.Router.SessionProviderLimit < 0 {
		return errors.New("router.session_provider_limit must not be negative")
	}
	return nil
}
