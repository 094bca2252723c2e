// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"ai-credit-gateway/internal/interfaces/http/dto"
	apperrors "ai-credit-gateway/pkg/errors"
)

// respondError 将应用错误映射为带机器可读错误码的 HTTP 响应
func respondError(c *gin.Context, err error) {
	appErr := apperrors.AsAppError(err)
	dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, &dto.ErrorDetail{
		ErrorCode: string(appErr.Code),
		Details:   appErr.Detail,
	})
}

// currentUserID 获取当前认证用户 ID，未认证返回空串
func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}
