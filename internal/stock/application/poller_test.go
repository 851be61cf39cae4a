package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deshkart/storefront/internal/stock/domain"
)

type fakeStockGateway struct {
	mu    sync.Mutex
	calls map[string]int
	stock map[string]*domain.ProductStock
}

func newFakeStockGateway() *fakeStockGateway {
	return &fakeStockGateway{
		calls: make(map[string]int),
		stock: make(map[string]*domain.ProductStock),
	}
}

func (g *fakeStockGateway) ColorVariationStock(ctx context.Context, productID string) (*domain.ProductStock, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[productID]++
	return g.stock[productID], nil
}

func (g *fakeStockGateway) callCount(productID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[productID]
}

type recordingCache struct {
	mu     sync.Mutex
	writes int
}

func (c *recordingCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	return nil
}

func available(v int) *int { return &v }

// 每一轮刷新都必须直连上游：缓存只写穿，不回读，
// 否则新鲜度窗口会退化成缓存过期时间而不是轮询间隔
func TestRefreshAlwaysQueriesUpstream(t *testing.T) {
	gw := newFakeStockGateway()
	gw.stock["p1"] = &domain.ProductStock{ProductID: "p1", Available: available(5)}

	rc := &recordingCache{}
	p := NewStockPoller(gw, rc, func() []string { return []string{"p1"} }, time.Hour, time.Hour, nil)

	p.refresh(context.Background())
	p.refresh(context.Background())

	assert.Equal(t, 2, gw.callCount("p1"), "a cached snapshot must not suppress the upstream fetch")
	assert.Equal(t, 2, rc.writes, "each round writes the fresh snapshot through to the cache")
}

// 上游库存变化在下一轮刷新后立即反映到快照
func TestRefreshPicksUpStockChanges(t *testing.T) {
	gw := newFakeStockGateway()
	gw.stock["p1"] = &domain.ProductStock{ProductID: "p1", Available: available(5)}

	p := NewStockPoller(gw, nil, func() []string { return []string{"p1"} }, time.Hour, time.Hour, nil)

	p.refresh(context.Background())
	snap := p.Snapshot("p1")
	require.NotNil(t, snap)
	assert.Equal(t, 5, *snap.Available)

	gw.mu.Lock()
	gw.stock["p1"] = &domain.ProductStock{ProductID: "p1", Available: available(0)}
	gw.mu.Unlock()

	p.refresh(context.Background())
	snap = p.Snapshot("p1")
	require.NotNil(t, snap)
	assert.Equal(t, 0, *snap.Available, "a depleted stock must surface on the next round")
}

func TestSnapshotMissingProduct(t *testing.T) {
	p := NewStockPoller(newFakeStockGateway(), nil, func() []string { return nil }, time.Hour, time.Hour, nil)
	assert.Nil(t, p.Snapshot("unknown"))
}
