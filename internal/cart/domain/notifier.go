package domain

import "context"

// Notifier 面向用户的通知侧通道，失败只落在状态转移加一条通知上
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}
