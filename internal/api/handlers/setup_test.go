package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Mieluoxxx/Siriusx-Router/internal/db"
	"github.com/Mieluoxxx/Siriusx-Router/internal/provider"
	"github.com/Mieluoxxx/Siriusx-Router/internal/router"
	"github.com/Mieluoxxx/Siriusx-Router/internal/stats"
	"github.com/Mieluoxxx/Siriusx-Router/internal/upstream"
	"github.com/Mieluoxxx/Siriusx-Router/internal/usagelog"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	engine   *gin.Engine
	db       *gorm.DB
	service  *provider.Service
	requests *stats.RequestCounter
	routes   *stats.RouteCounter
}

// setupTestHandler 创建测试处理器和路由
func setupTestHandler(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(database))

	service := provider.NewService(provider.NewRepository(database), nil, 0)
	caller := upstream.NewCaller()
	logs := usagelog.NewService(database)
	requests := stats.NewRequestCounter(time.Second)
	routes := stats.NewRouteCounter(time.Second)
	t.Cleanup(func() {
		requests.Stop()
		routes.Stop()
	})
	rt := router.New(service, caller, logs, router.WithRouteCounter(routes))

	providerHandler := NewProviderHandler(service, provider.NewTester(service, caller, time.Second))
	routeHandler := NewRouteHandler(rt, service)
	usageHandler := NewUsageLogHandler(logs)
	statsHandler := NewStatsHandler(requests, routes, rt)

	engine := gin.New()
	api := engine.Group("/api")
	{
		providers := api.Group("/providers")
		{
			providers.POST("", providerHandler.CreateProvider)
			providers.GET("", providerHandler.ListProviders)
			providers.GET("/active", routeHandler.ActiveProviders)
			providers.POST("/reset-usage", providerHandler.ResetAllUsage)
			providers.GET("/:id", providerHandler.GetProvider)
			providers.PUT("/:id", providerHandler.UpdateProvider)
			providers.DELETE("/:id", providerHandler.DeleteProvider)
			providers.POST("/:id/test", providerHandler.TestProvider)
			providers.POST("/:id/reset-usage", providerHandler.ResetUsage)
		}
		api.POST("/route", routeHandler.Route)
		api.GET("/usage-logs", usageHandler.ListUsageLogs)
		api.GET("/usage-logs/summary", usageHandler.Summary)
		api.GET("/stats", statsHandler.GetStats)
	}

	return &testEnv{engine: engine, db: database, service: service, requests: requests, routes: routes}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	e.engine.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), v))
}

func okServer(t *testing.T, text string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]string{"content": text}}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func failServer(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	return server
}

func intPtr(v int) *int { return &v }
