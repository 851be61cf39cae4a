// Package response 提供统一的 HTTP JSON 响应封装
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body 统一响应结构
type Body struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Success 返回成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Data: data})
}

// Error 返回 500 错误响应
func Error(c *gin.Context, message string, code string) {
	ErrorWithStatus(c, http.StatusInternalServerError, message, code)
}

// ErrorWithStatus 返回带状态码的错误响应
func ErrorWithStatus(c *gin.Context, status int, message string, code string) {
	c.JSON(status, Body{Code: code, Message: message})
}
