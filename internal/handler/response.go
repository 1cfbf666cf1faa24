// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"agent-chat-go/internal/middleware"
	"agent-chat-go/internal/model"
	apperrors "agent-chat-go/pkg/errors"
	"agent-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

var statusByCode = map[apperrors.Code]int{
	apperrors.CodeInvalidArgument:      http.StatusBadRequest,
	apperrors.CodeNotFound:             http.StatusNotFound,
	apperrors.CodeConflict:             http.StatusConflict,
	apperrors.CodePermissionDenied:     http.StatusForbidden,
	apperrors.CodeUnauthenticated:      http.StatusUnauthorized,
	apperrors.CodeTransformationFailed: http.StatusBadGateway,
	apperrors.CodeUnavailable:          http.StatusServiceUnavailable,
	apperrors.CodeInternal:             http.StatusInternalServerError,
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    http.StatusBadRequest,
		"message": message,
		"data":    gin.H{"reason": apperrors.CodeInvalidArgument},
	})
}

// fail 把应用错误映射为 HTTP 状态码；未知错误一律按 500 处理且不暴露细节。
func fail(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		log.Error("unhandled error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "internal error",
			"data":    gin.H{"reason": apperrors.CodeInternal},
		})
		return
	}

	status, ok := statusByCode[appErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "path", c.Request.URL.Path, "code", appErr.Code, "error", err)
	}
	c.JSON(status, gin.H{
		"code":    status,
		"message": appErr.Message,
		"data":    gin.H{"reason": appErr.Code},
	})
}

// currentUser 读取认证中间件存入的用户；缺失时直接返回 401。
func currentUser(c *gin.Context) (*model.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "未认证", "data": nil})
		return nil, false
	}
	return user, true
}
