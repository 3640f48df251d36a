package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Mieluoxxx/Siriusx-Router/internal/config"
	"github.com/Mieluoxxx/Siriusx-Router/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Driver:          config.DriverSQLite,
		Path:            ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	}
}

func TestInitDatabase(t *testing.T) {
	db, err := InitDatabase(memoryConfig())
	require.NoError(t, err)
	require.NotNil(t, db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestInitDatabase_CreatesDataDir(t *testing.T) {
	dir := t.TempDir()
	cfg := memoryConfig()
	cfg.Path = filepath.Join(dir, "nested", "router.db")

	db, err := InitDatabase(cfg)
	require.NoError(t, err)
	defer CloseDatabase(db)

	assert.DirExists(t, filepath.Join(dir, "nested"))
}

func TestInitDatabase_UnsupportedDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Driver = "mysql"

	_, err := InitDatabase(cfg)
	assert.Error(t, err)
}

func TestAutoMigrate(t *testing.T) {
	db, err := InitDatabase(memoryConfig())
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	assert.True(t, db.Migrator().HasTable(&models.Provider{}))
	assert.True(t, db.Migrator().HasTable(&models.UsageLog{}))
	assert.True(t, db.Migrator().HasColumn(&models.Provider{}, "usage_count"))
	assert.True(t, db.Migrator().HasColumn(&models.UsageLog{}, "fallback_reason"))
}

func TestCloseDatabase(t *testing.T) {
	db, err := InitDatabase(memoryConfig())
	require.NoError(t, err)

	require.NoError(t, CloseDatabase(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())
}
