package middleware

import (
	"github.com/Mieluoxxx/Siriusx-Router/internal/stats"
	"github.com/gin-gonic/gin"
)

// RequestCounterMiddleware 请求计数中间件
func RequestCounterMiddleware(counter *stats.RequestCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		counter.Increment()
		c.Next()
	}
}
