package notification

import (
	"context"

	"github.com/deshkart/storefront/pkg/logger"
)

// LogNotifier 把面向用户的通知落到结构化日志
// UI 层的 toast 展示属于外围协作者，核心只保证通知被发出
type LogNotifier struct{}

// NewLogNotifier 创建日志通知器
func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

// Success 成功通知
func (n *LogNotifier) Success(ctx context.Context, message string) {
	logger.Info(ctx, "user notification", "level", "success", "message", message)
}

// Error 失败通知
func (n *LogNotifier) Error(ctx context.Context, message string) {
	logger.Warn(ctx, "user notification", "level", "error", "message", message)
}
