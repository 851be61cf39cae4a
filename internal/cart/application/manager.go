package application

import (
	"context"
	"sync"
	"time"

	"github.com/deshkart/storefront/internal/cart/domain"
	"github.com/deshkart/storefront/pkg/metrics"
)

// StoreManager 按会话管理 CartStore 的生命周期
// 每个会话一个存储实例，登出或清空购物车时销毁
type StoreManager struct {
	mu     sync.Mutex
	stores map[string]*CartStore

	debounce  time.Duration
	gateway   domain.CartGateway
	mirror    domain.CartMirrorRepository
	publisher domain.EventPublisher
	notifier  domain.Notifier
	stocks    StockProvider
	metrics   *metrics.Metrics
}

// NewStoreManager 创建会话存储管理器
func NewStoreManager(
	debounce time.Duration,
	gateway domain.CartGateway,
	mirror domain.CartMirrorRepository,
	publisher domain.EventPublisher,
	notifier domain.Notifier,
	stocks StockProvider,
	m *metrics.Metrics,
) *StoreManager {
	return &StoreManager{
		stores:    make(map[string]*CartStore),
		debounce:  debounce,
		gateway:   gateway,
		mirror:    mirror,
		publisher: publisher,
		notifier:  notifier,
		stocks:    stocks,
		metrics:   m,
	}
}

// SetStockProvider 注入库存快照来源
// 轮询器依赖管理器提供商品集合，因此在两者都构造完成后再行注入
func (m *StoreManager) SetStockProvider(stocks StockProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stocks = stocks
	for _, s := range m.stores {
		s.mu.Lock()
		s.stocks = stocks
		s.mu.Unlock()
	}
}

// Get 获取会话对应的存储，不存在则创建并从镜像恢复
func (m *StoreManager) Get(ctx context.Context, sessionID string) (*CartStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if store, ok := m.stores[sessionID]; ok {
		return store, nil
	}

	store, err := NewCartStore(ctx, sessionID, m.debounce, m.gateway, m.mirror, m.publisher, m.notifier, m.stocks, m.metrics)
	if err != nil {
		return nil, err
	}
	m.stores[sessionID] = store
	return store, nil
}

// Evict 销毁会话存储，取消其待触发的计时器
func (m *StoreManager) Evict(sessionID string) {
	m.mu.Lock()
	store, ok := m.stores[sessionID]
	delete(m.stores, sessionID)
	m.mu.Unlock()

	if ok {
		store.Close()
	}
}

// ProductIDs 所有活跃会话涉及的商品并集，供库存轮询器刷新
func (m *StoreManager) ProductIDs() []string {
	m.mu.Lock()
	stores := make([]*CartStore, 0, len(m.stores))
	for _, s := range m.stores {
		stores = append(stores, s)
	}
	m.mu.Unlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, s := range stores {
		for _, id := range s.ProductIDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// Close 销毁全部会话存储
func (m *StoreManager) Close() {
	m.mu.Lock()
	stores := m.stores
	m.stores = make(map[string]*CartStore)
	m.mu.Unlock()

	for _, s := range stores {
		s.Close()
	}
}
