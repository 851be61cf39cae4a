package domain

import "context"

// UpdateItem 发送给远端购物车接口的单条数量变更
type UpdateItem struct {
	ItemID   string `json:"item_id"`
	Color    string `json:"color,omitempty"`
	Quantity int    `json:"quantity"`
}

// CartGateway 远端购物车写接口
// 批量写操作在 last-write-wins 语义下幂等，核心从不自动重试
type CartGateway interface {
	// UpdateCartItems 一次性提交合并后的数量变更，返回新的会话令牌
	UpdateCartItems(ctx context.Context, items []UpdateItem, ctoken string) (string, error)
	// RemoveCartItem 立即移除单行，不经过批量通道
	RemoveCartItem(ctx context.Context, itemID, color, ctoken string) (string, error)
}
