package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deshkart/storefront/internal/stock/domain"
	"github.com/deshkart/storefront/pkg/logger"
	"github.com/deshkart/storefront/pkg/metrics"
)

// ProductSource 返回当前需要刷新库存的商品集合
type ProductSource func() []string

// SnapshotCache 库存快照的旁路缓存写入口，供同一上游的其他读取方复用
type SnapshotCache interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// StockPoller 按固定间隔刷新库存快照
//
// 只读轮询，不会阻塞也不会被批量写阻塞；新快照只在下一次读取时
// 进入纯评估函数。每一轮都直连上游拉取，缓存只写穿不回读，
// 保证新鲜度窗口就是轮询间隔本身。
type StockPoller struct {
	gateway  domain.StockGateway
	cache    SnapshotCache
	products ProductSource
	interval time.Duration
	ttl      time.Duration
	metrics  *metrics.Metrics

	mu        sync.RWMutex
	snapshots map[string]*domain.ProductStock

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewStockPoller 创建库存轮询器
func NewStockPoller(
	gateway domain.StockGateway,
	snapshotCache SnapshotCache,
	products ProductSource,
	interval, ttl time.Duration,
	m *metrics.Metrics,
) *StockPoller {
	return &StockPoller{
		gateway:   gateway,
		cache:     snapshotCache,
		products:  products,
		interval:  interval,
		ttl:       ttl,
		metrics:   m,
		snapshots: make(map[string]*domain.ProductStock),
		stopCh:    make(chan struct{}),
	}
}

// Start 启动后台轮询
func (p *StockPoller) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.refresh(ctx)
		for {
			select {
			case <-ticker.C:
				p.refresh(ctx)
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop 停止轮询
func (p *StockPoller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// Snapshot 返回商品最新快照，没有数据时返回 nil（不受约束）
func (p *StockPoller) Snapshot(productID string) *domain.ProductStock {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshots[productID]
}

// refresh 拉取一轮快照
// 每轮都直连上游，旧快照最多滞后一个轮询间隔；缓存只写穿，
// 读取缓存会把新鲜度退化成缓存过期时间而不是轮询间隔
func (p *StockPoller) refresh(ctx context.Context) {
	for _, productID := range p.products() {
		stock, err := p.gateway.ColorVariationStock(ctx, productID)
		if err != nil {
			logger.Warn(ctx, "stock refresh failed", "product_id", productID, "error", err)
			continue
		}

		p.mu.Lock()
		p.snapshots[productID] = stock
		p.mu.Unlock()

		if p.cache != nil && stock != nil {
			key := fmt.Sprintf("stock:%s", productID)
			if err := p.cache.SetJSON(ctx, key, stock, p.ttl); err != nil {
				logger.Warn(ctx, "stock cache write failed", "product_id", productID, "error", err)
			}
		}

		if p.metrics != nil {
			p.metrics.StockRefreshesTotal.Inc()
		}
	}
}
