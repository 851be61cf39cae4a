package messaging

import (
	"context"

	"github.com/deshkart/storefront/internal/cart/domain"
	"github.com/deshkart/storefront/pkg/mq"
)

// Kafka 主题
const (
	TopicCartChanged     = "cart.changed"
	TopicCartLineRemoved = "cart.line.removed"
	TopicCartCleared     = "cart.cleared"
)

// KafkaEventPublisher 基于 Kafka 的购物车变更通知实现
// 同一购物车的其他视图订阅这些主题后重新读取最新状态
type KafkaEventPublisher struct {
	producer *mq.KafkaProducer
}

// NewKafkaEventPublisher 创建事件发布器
func NewKafkaEventPublisher(producer *mq.KafkaProducer) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

// PublishCartChanged 发布购物车内容变更事件
func (p *KafkaEventPublisher) PublishCartChanged(ctx context.Context, event domain.CartChangedEvent) error {
	return p.producer.SendMessage(ctx, TopicCartChanged, event.SessionID, event)
}

// PublishLineRemoved 发布移除商品事件
func (p *KafkaEventPublisher) PublishLineRemoved(ctx context.Context, event domain.CartLineRemovedEvent) error {
	return p.producer.SendMessage(ctx, TopicCartLineRemoved, event.SessionID, event)
}

// PublishCartCleared 发布购物车清空事件
func (p *KafkaEventPublisher) PublishCartCleared(ctx context.Context, event domain.CartClearedEvent) error {
	return p.producer.SendMessage(ctx, TopicCartCleared, event.SessionID, event)
}
