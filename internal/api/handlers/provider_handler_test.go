package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/Mieluoxxx/Siriusx-Router/internal/models"
	"github.com/Mieluoxxx/Siriusx-Router/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createProvider(t *testing.T, env *testEnv, req provider.CreateProviderRequest) provider.ProviderResponse {
	resp := env.do(t, http.MethodPost, "/api/providers", req)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var out provider.ProviderResponse
	decode(t, resp, &out)
	return out
}

func TestCreateProvider_Success(t *testing.T) {
	env := setupTestHandler(t)

	out := createProvider(t, env, provider.CreateProviderRequest{
		ProviderName: "OpenAI",
		BaseURL:      "https://api.openai.com/v1",
		APIKey:       "sk-test-key-12345",
	})
	assert.NotZero(t, out.ID)
	assert.Equal(t, "OpenAI", out.ProviderName)
	assert.Equal(t, "sk-****2345", out.APIKey)
	assert.Equal(t, models.ProviderStatusActive, out.Status)
	assert.Equal(t, "openai", out.Family)
	assert.Equal(t, models.DefaultDailyLimit, out.DailyLimit)
}

func TestCreateProvider_ValidationErrors(t *testing.T) {
	env := setupTestHandler(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing name", map[string]string{"api_key": "k"}},
		{"missing key", map[string]string{"provider_name": "A"}},
		{"bad status", map[string]string{"provider_name": "A", "api_key": "k", "status": "paused"}},
		{"bad url", map[string]string{"provider_name": "A", "api_key": "k", "base_url": "ftp://x"}},
		{"bad family", map[string]string{"provider_name": "A", "api_key": "k", "family": "claude"}},
		{"zero daily limit", map[string]interface{}{"provider_name": "A", "api_key": "k", "daily_limit": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/providers", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)

			var out provider.ErrorResponse
			decode(t, resp, &out)
			assert.Equal(t, "VALIDATION_ERROR", out.Error.Code)
		})
	}
}

func TestCreateProvider_NameConflict(t *testing.T) {
	env := setupTestHandler(t)
	createProvider(t, env, provider.CreateProviderRequest{ProviderName: "Groq", APIKey: "gsk_123456789"})

	resp := env.do(t, http.MethodPost, "/api/providers", provider.CreateProviderRequest{ProviderName: "Groq", APIKey: "other"})
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestGetProvider(t *testing.T) {
	env := setupTestHandler(t)
	created := createProvider(t, env, provider.CreateProviderRequest{ProviderName: "Groq", APIKey: "gsk_123456789"})

	resp := env.do(t, http.MethodGet, fmt.Sprintf("/api/providers/%d", created.ID), nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/providers/999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/providers/abc", nil).Code)
}

func TestListProviders_Pagination(t *testing.T) {
	env := setupTestHandler(t)
	for i := 0; i < 15; i++ {
		createProvider(t, env, provider.CreateProviderRequest{ProviderName: fmt.Sprintf("P%02d", i), APIKey: "k", BaseURL: "https://llm.example.com/v1"})
	}

	resp := env.do(t, http.MethodGet, "/api/providers?page=2&page_size=10", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var out provider.ProviderListResponse
	decode(t, resp, &out)
	assert.Len(t, out.Data, 5)
	assert.Equal(t, int64(15), out.Pagination.Total)
	assert.Equal(t, 2, out.Pagination.TotalPages)
}

func TestUpdateProvider(t *testing.T) {
	env := setupTestHandler(t)
	created := createProvider(t, env, provider.CreateProviderRequest{ProviderName: "A", APIKey: "k", BaseURL: "https://llm.example.com/v1"})

	resp := env.do(t, http.MethodPut, fmt.Sprintf("/api/providers/%d", created.ID), map[string]interface{}{
		"status":      "inactive",
		"priority":    3,
		"daily_limit": 200,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out provider.ProviderResponse
	decode(t, resp, &out)
	assert.Equal(t, models.ProviderStatusInactive, out.Status)
	assert.Equal(t, 3, out.Priority)
	assert.Equal(t, 200, out.DailyLimit)

	resp = env.do(t, http.MethodPut, "/api/providers/999", map[string]interface{}{"priority": 1})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCreateProvider_GenericWithoutBaseURL(t *testing.T) {
	env := setupTestHandler(t)

	resp := env.do(t, http.MethodPost, "/api/providers", provider.CreateProviderRequest{ProviderName: "local-llm", APIKey: "k"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "base_url")
}

func TestDeleteProvider(t *testing.T) {
	env := setupTestHandler(t)
	created := createProvider(t, env, provider.CreateProviderRequest{ProviderName: "A", APIKey: "k", BaseURL: "https://llm.example.com/v1"})

	path := fmt.Sprintf("/api/providers/%d", created.ID)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, nil).Code)
}

func TestTestProvider(t *testing.T) {
	env := setupTestHandler(t)
	server := okServer(t, "pong")
	created := createProvider(t, env, provider.CreateProviderRequest{ProviderName: "Local", APIKey: "k", BaseURL: server.URL})

	resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/providers/%d/test", created.ID), nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var out provider.TestResult
	decode(t, resp, &out)
	assert.True(t, out.Healthy)
	assert.Equal(t, "generic", out.Family)

	// 连通性测试不计入用量，也不写调用日志
	var count int64
	require.NoError(t, env.db.Model(&models.UsageLog{}).Count(&count).Error)
	assert.Zero(t, count)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/providers/999/test", nil).Code)
}

func TestResetUsage(t *testing.T) {
	env := setupTestHandler(t)
	created := createProvider(t, env, provider.CreateProviderRequest{ProviderName: "A", APIKey: "k", BaseURL: "https://llm.example.com/v1"})
	require.NoError(t, env.db.Model(&models.Provider{}).Where("id = ?", created.ID).Update("usage_count", 50).Error)

	resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/providers/%d/reset-usage", created.ID), nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var out provider.ProviderResponse
	decode(t, resp, &out)
	assert.Equal(t, 0, out.UsageCount)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/providers/999/reset-usage", nil).Code)
}

func TestResetAllUsage(t *testing.T) {
	env := setupTestHandler(t)
	createProvider(t, env, provider.CreateProviderRequest{ProviderName: "A", APIKey: "k", BaseURL: "https://llm.example.com/v1"})
	createProvider(t, env, provider.CreateProviderRequest{ProviderName: "B", APIKey: "k", BaseURL: "https://llm.example.com/v1"})
	require.NoError(t, env.db.Model(&models.Provider{}).Where("1 = 1").Update("usage_count", 7).Error)

	resp := env.do(t, http.MethodPost, "/api/providers/reset-usage", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var out map[string]int64
	decode(t, resp, &out)
	assert.Equal(t, int64(2), out["reset"])
}
