package upstream

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/Mieluoxxx/Siriusx-Router/internal/models"
)

// FailureType 单次调用的故障类型
type FailureType string

const (
	NoFailure         FailureType = ""
	TimeoutFailure    FailureType = "timeout"
	ConnectionFailure FailureType = "connection"
	ServerError       FailureType = "server_error"
	RateLimitFailure  FailureType = "rate_limit"
	ClientError       FailureType = "client_error"
	BadResponse       FailureType = "bad_response" // 2xx 但没有可解析的文本
	UnknownFailure    FailureType = "unknown"
)

// classifyError 根据传输层错误判定故障类型
func classifyError(err error) FailureType {
	switch {
	case err == nil:
		return NoFailure
	case isTimeoutError(err):
		return TimeoutFailure
	case isConnectionError(err):
		return ConnectionFailure
	default:
		return UnknownFailure
	}
}

// classifyStatus 根据非 2xx 状态码判定故障类型
func classifyStatus(status int) FailureType {
	switch {
	case status >= 200 && status < 300:
		return NoFailure
	case status == http.StatusTooManyRequests:
		return RateLimitFailure
	case status >= 500:
		return ServerError
	default:
		return ClientError
	}
}

// StatusMarker 返回写入调用日志的状态码
// 超时与其他传输错误使用不同的标记，HTTP 应答保留原始状态码
func StatusMarker(failure FailureType, status int) int {
	switch failure {
	case TimeoutFailure:
		return models.StatusTimeout
	case ConnectionFailure, UnknownFailure:
		if status == 0 {
			return models.StatusTransportError
		}
	}
	return status
}

// isTimeoutError 检查是否为超时错误
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}

// isConnectionError 检查是否为连接错误
func isConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	// 对端提前关闭连接
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connection refused", "connection reset", "no such host"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
