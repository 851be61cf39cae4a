package domain

import "context"

// StockGateway 远端库存读接口，按固定间隔轮询刷新快照
type StockGateway interface {
	ColorVariationStock(ctx context.Context, productID string) (*ProductStock, error)
}
