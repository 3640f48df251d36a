package usagelog

import (
	"context"
	"testing"
	"time"

	"github.com/Mieluoxxx/Siriusx-Router/internal/db"
	"github.com/Mieluoxxx/Siriusx-Router/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(database))
	return database
}

func reason(s string) *string { return &s }

func TestService_Append(t *testing.T) {
	database := setupTestDB(t)
	service := NewService(database)

	entry := &models.UsageLog{
		RequestID:      "req-1",
		ProviderName:   "OpenAI",
		Endpoint:       "chat/completions",
		StatusCode:     200,
		ResponseTimeMs: 120,
		ResponseTime:   0.12,
		ModelName:      "gpt-4o-mini",
		Prompt:         "hello",
		Answer:         "hi",
	}
	require.NoError(t, service.Append(context.Background(), entry))
	assert.NotZero(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	var count int64
	database.Model(&models.UsageLog{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestService_Record_SwallowsWriteErrors(t *testing.T) {
	database := setupTestDB(t)
	service := NewService(database)
	require.NoError(t, database.Migrator().DropTable(&models.UsageLog{}))

	assert.NotPanics(t, func() {
		service.Record(context.Background(), &models.UsageLog{ProviderName: "Groq", Endpoint: "chat/completions"})
	})
}

func TestService_Recent(t *testing.T) {
	database := setupTestDB(t)
	service := NewService(database)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		name := "OpenAI"
		if i%2 == 0 {
			name = "Groq"
		}
		require.NoError(t, service.Append(ctx, &models.UsageLog{
			RequestID:    "req",
			ProviderName: name,
			Endpoint:     "chat/completions",
			StatusCode:   200,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := service.Recent(ctx, Query{Limit: 3})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].CreatedAt.After(entries[1].CreatedAt))

	entries, err = service.Recent(ctx, Query{ProviderName: "Groq"})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, "Groq", e.ProviderName)
	}
}

func TestService_Summary(t *testing.T) {
	database := setupTestDB(t)
	service := NewService(database)
	ctx := context.Background()

	rows := []*models.UsageLog{
		{ProviderName: "A", Endpoint: "chat/completions", StatusCode: 500},
		{ProviderName: "A", Endpoint: models.EndpointFallback, StatusCode: models.StatusFallback, FallbackReason: reason("A failure → B")},
		{ProviderName: "B", Endpoint: "chat/completions", StatusCode: 200, Answer: "ok"},
		{ProviderName: "C", Endpoint: models.EndpointQuota, StatusCode: models.StatusQuotaSkipped, FallbackReason: reason(models.FallbackReasonDailyLimit)},
		{ProviderName: "B", Endpoint: "chat/completions", StatusCode: 200, Answer: ""},
	}
	for _, r := range rows {
		require.NoError(t, service.Append(ctx, r))
	}

	summary, err := service.Summary(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, summary, 3)

	assert.Equal(t, ProviderSummary{ProviderName: "A", Failures: 1, Fallbacks: 1}, summary[0])
	assert.Equal(t, ProviderSummary{ProviderName: "B", Successes: 1, Failures: 1}, summary[1])
	assert.Equal(t, ProviderSummary{ProviderName: "C", Skips: 1}, summary[2])
}
