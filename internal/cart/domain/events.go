package domain

import (
	"context"
	"time"
)

// CartChangedEvent 购物车内容变更事件
type CartChangedEvent struct {
	SessionID string     `json:"session_id"`
	CToken    string     `json:"ctoken"`
	Lines     []CartLine `json:"lines"`
	Timestamp time.Time  `json:"timestamp"`
}

// CartLineRemovedEvent 购物车移除商品事件
type CartLineRemovedEvent struct {
	SessionID string    `json:"session_id"`
	ItemID    string    `json:"item_id"`
	Color     string    `json:"color,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CartClearedEvent 购物车清空事件
type CartClearedEvent struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// EventPublisher 镜像写入后的变更通知，供同一购物车的其他视图重新读取
type EventPublisher interface {
	PublishCartChanged(ctx context.Context, event CartChangedEvent) error
	PublishLineRemoved(ctx context.Context, event CartLineRemovedEvent) error
	PublishCartCleared(ctx context.Context, event CartClearedEvent) error
}
