package handlers

import (
	"net/http"
	"strconv"

	"github.com/Mieluoxxx/Siriusx-Router/internal/provider"
	"github.com/gin-gonic/gin"
)

// respondError 统一错误响应格式
func respondError(c *gin.Context, status int, code, message string, details ...interface{}) {
	detail := provider.ErrorDetail{Code: code, Message: message}
	if len(details) > 0 {
		detail.Details = details[0]
	}
	c.JSON(status, provider.ErrorResponse{Error: detail})
}

// parseID 解析路径中的 :id，失败时已写入 400 响应
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid provider ID")
		return 0, false
	}
	return uint(id), true
}
