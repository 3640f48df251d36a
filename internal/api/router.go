package api

import (
	"time"

	"github.com/Mieluoxxx/Siriusx-Router/internal/api/handlers"
	"github.com/Mieluoxxx/Siriusx-Router/internal/api/middleware"
	"github.com/Mieluoxxx/Siriusx-Router/internal/provider"
	"github.com/Mieluoxxx/Siriusx-Router/internal/router"
	"github.com/Mieluoxxx/Siriusx-Router/internal/stats"
	"github.com/Mieluoxxx/Siriusx-Router/internal/usagelog"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies HTTP 层依赖
type Dependencies struct {
	Providers    *provider.Service
	Tester       *provider.Tester
	Router       *router.Router
	UsageLogs    *usagelog.Service
	Requests     *stats.RequestCounter
	RouteCounter *stats.RouteCounter
	AdminKey     string
	CORSOrigins  []string
}

// SetupRouter 配置路由
func SetupRouter(deps Dependencies) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestLogger())

	if len(deps.CORSOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// 健康检查端点（无需鉴权）
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "Siriusx-Router",
		})
	})

	apiGroup := engine.Group("/api")
	apiGroup.Use(
		middleware.RequestCounterMiddleware(deps.Requests),
		middleware.AdminAuthMiddleware(deps.AdminKey),
	)
	{
		setupProviderRoutes(apiGroup, deps)
		setupRouteRoutes(apiGroup, deps)

		usageLogs := handlers.NewUsageLogHandler(deps.UsageLogs)
		apiGroup.GET("/usage-logs", usageLogs.ListUsageLogs)
		apiGroup.GET("/usage-logs/summary", usageLogs.Summary)

		statsHandler := handlers.NewStatsHandler(deps.Requests, deps.RouteCounter, deps.Router)
		apiGroup.GET("/stats", statsHandler.GetStats)
	}

	return engine
}

// setupProviderRoutes 配置供应商路由
func setupProviderRoutes(group *gin.RouterGroup, deps Dependencies) {
	handler := handlers.NewProviderHandler(deps.Providers, deps.Tester)
	routeHandler := handlers.NewRouteHandler(deps.Router, deps.Providers)

	providers := group.Group("/providers")
	{
		providers.POST("", handler.CreateProvider)
		providers.GET("", handler.ListProviders)
		providers.GET("/active", routeHandler.ActiveProviders)
		providers.POST("/reset-usage", handler.ResetAllUsage)
		providers.GET("/:id", handler.GetProvider)
		providers.PUT("/:id", handler.UpdateProvider)
		providers.DELETE("/:id", handler.DeleteProvider)
		providers.POST("/:id/test", handler.TestProvider)
		providers.POST("/:id/reset-usage", handler.ResetUsage)
	}
}

// setupRouteRoutes 配置路由请求端点
func setupRouteRoutes(group *gin.RouterGroup, deps Dependencies) {
	handler := handlers.NewRouteHandler(deps.Router, deps.Providers)
	group.POST("/route", handler.Route)
}
