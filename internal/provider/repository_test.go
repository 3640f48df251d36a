package provider

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Mieluoxxx/Siriusx-Router/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB 创建测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Provider{}))
	return db
}

func intPtr(v int) *int { return &v }

func newProvider(name, status string) *models.Provider {
	return &models.Provider{
		ProviderName: name,
		BaseURL:      "https://api.test.com",
		APIKey:       "sk-test-key",
		Status:       status,
	}
}

func TestRepository_Create(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	p := newProvider("OpenAI", models.ProviderStatusActive)
	p.Priority = intPtr(2)
	require.NoError(t, repo.Create(ctx, p))
	assert.NotZero(t, p.ID)

	found, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "OpenAI", found.ProviderName)
	assert.Equal(t, 2, found.EffectivePriority())
	assert.Equal(t, 0, found.UsageCount)
	assert.Nil(t, found.DailyLimit)
	assert.False(t, found.CreatedAt.IsZero())
}

func TestRepository_FindByID_NotFound(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	_, err := repo.FindByID(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestRepository_FindAll(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		require.NoError(t, repo.Create(ctx, newProvider(fmt.Sprintf("Provider %02d", i), models.ProviderStatusActive)))
	}

	page, total, err := repo.FindAll(ctx, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	assert.Len(t, page, 5)
	assert.Equal(t, "Provider 20", page[0].ProviderName)
}

func TestRepository_FindActive(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newProvider("A", models.ProviderStatusActive)))
	require.NoError(t, repo.Create(ctx, newProvider("B", models.ProviderStatusInactive)))
	require.NoError(t, repo.Create(ctx, newProvider("C", models.ProviderStatusActive)))
	require.NoError(t, repo.Create(ctx, newProvider("D", "disabled")))

	active, err := repo.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "A", active[0].ProviderName)
	assert.Equal(t, "C", active[1].ProviderName)
}

func TestRepository_IncrementUsage(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	p := newProvider("Groq", models.ProviderStatusActive)
	require.NoError(t, repo.Create(ctx, p))

	at := time.Now().Truncate(time.Second)
	require.NoError(t, repo.IncrementUsage(ctx, p.ID, at))
	require.NoError(t, repo.IncrementUsage(ctx, p.ID, at))

	found, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.UsageCount)
	require.NotNil(t, found.LastTested)
	assert.True(t, found.LastTested.Equal(at))

	assert.ErrorIs(t, repo.IncrementUsage(ctx, 9999, at), ErrProviderNotFound)
}

func TestRepository_Update_PreservesUsage(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	p := newProvider("OpenAI", models.ProviderStatusActive)
	require.NoError(t, repo.Create(ctx, p))

	stale, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)

	// 读取之后路由器又记了一次成功
	at := time.Now().Truncate(time.Second)
	require.NoError(t, repo.IncrementUsage(ctx, p.ID, at))

	stale.Priority = intPtr(7)
	stale.Temperature = nil
	require.NoError(t, repo.Update(ctx, stale))

	found, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, found.UsageCount)
	require.NotNil(t, found.LastTested)
	assert.True(t, found.LastTested.Equal(at))
	assert.Equal(t, 7, found.EffectivePriority())

	missing := newProvider("Ghost", models.ProviderStatusActive)
	missing.ID = 9999
	assert.ErrorIs(t, repo.Update(ctx, missing), ErrProviderNotFound)
}

func TestRepository_ResetUsage(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	a := newProvider("A", models.ProviderStatusActive)
	a.UsageCount = 50
	b := newProvider("B", models.ProviderStatusActive)
	b.UsageCount = 3
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	require.NoError(t, repo.ResetUsage(ctx, a.ID))
	found, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, found.UsageCount)

	affected, err := repo.ResetAllUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	assert.ErrorIs(t, repo.ResetUsage(ctx, 9999), ErrProviderNotFound)
}

func TestRepository_Delete(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	p := newProvider("A", models.ProviderStatusActive)
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, repo.Delete(ctx, p.ID))
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), ErrProviderNotFound)
}

func TestRepository_CheckNameExists(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	p := newProvider("OpenAI", models.ProviderStatusActive)
	require.NoError(t, repo.Create(ctx, p))

	exists, err := repo.CheckNameExists(ctx, "OpenAI", 0)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.CheckNameExists(ctx, "OpenAI", p.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}
