package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deshkart/storefront/internal/cart/domain"
	stockdomain "github.com/deshkart/storefront/internal/stock/domain"
)

type fakeGateway struct {
	mu          sync.Mutex
	updateCalls [][]domain.UpdateItem
	removeCalls []domain.LineKey
	updateErr   error
	removeErr   error
	nextToken   string
	block       chan struct{} // 非 nil 时批量写阻塞等待释放
}

func (g *fakeGateway) UpdateCartItems(ctx context.Context, items []domain.UpdateItem, ctoken string) (string, error) {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.updateErr != nil {
		return "", g.updateErr
	}
	g.updateCalls = append(g.updateCalls, items)
	return g.nextToken, nil
}

func (g *fakeGateway) RemoveCartItem(ctx context.Context, itemID, color, ctoken string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.removeErr != nil {
		return "", g.removeErr
	}
	g.removeCalls = append(g.removeCalls, domain.LineKey{ItemID: itemID, Color: color})
	return g.nextToken, nil
}

func (g *fakeGateway) updateCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.updateCalls)
}

func (g *fakeGateway) removeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.removeCalls)
}

type fakeMirror struct {
	mu     sync.Mutex
	carts  map[string]domain.Cart
	saves  int
	clears int
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{carts: make(map[string]domain.Cart)}
}

func (m *fakeMirror) Load(ctx context.Context, sessionID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cart, ok := m.carts[sessionID]; ok {
		c := cart.Clone()
		return &c, nil
	}
	return nil, nil
}

func (m *fakeMirror) Save(ctx context.Context, sessionID string, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[sessionID] = cart.Clone()
	m.saves++
	return nil
}

func (m *fakeMirror) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	m.clears++
	return nil
}

func (m *fakeMirror) saved(sessionID string) (domain.Cart, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[sessionID]
	return cart, ok
}

type stubStocks struct {
	snapshots map[string]*stockdomain.ProductStock
}

func (s *stubStocks) Snapshot(productID string) *stockdomain.ProductStock {
	return s.snapshots[productID]
}

func testLine(itemID string, qty int, price int64) domain.CartLine {
	return domain.CartLine{
		ItemID:    itemID,
		Quantity:  qty,
		UnitPrice: decimal.NewFromInt(price),
	}
}

func newTestStore(t *testing.T, debounce time.Duration, gw *fakeGateway, mirror *fakeMirror) *CartStore {
	t.Helper()
	s, err := NewCartStore(context.Background(), "sess-1", debounce, gw, mirror, nil, nil, nil, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func effectiveQty(s *CartStore, key domain.LineKey) (int, bool) {
	for _, line := range s.EffectiveLines() {
		if line.Key() == key {
			return line.Quantity, true
		}
	}
	return 0, false
}

// 游客模式：本地提交即权威，绝不触碰远端
func TestGuestAddCommitsLocallyWithoutRemoteCall(t *testing.T) {
	gw := &fakeGateway{}
	mirror := newFakeMirror()
	s := newTestStore(t, 20*time.Millisecond, gw, mirror)

	require.NoError(t, s.AddOrIncrementLine(context.Background(), testLine("p1", 3, 100)))

	qty, ok := effectiveQty(s, domain.LineKey{ItemID: "p1"})
	require.True(t, ok)
	assert.Equal(t, 3, qty)

	saved, ok := mirror.saved("sess-1")
	require.True(t, ok)
	require.Len(t, saved.Lines, 1)
	assert.Equal(t, 3, saved.Lines[0].Quantity)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, gw.updateCount(), "guest cart must never call the remote gateway")
}

func TestStoreRestoresFromMirror(t *testing.T) {
	mirror := newFakeMirror()
	mirror.carts["sess-1"] = domain.Cart{Lines: []domain.CartLine{testLine("p1", 2, 50)}}

	s := newTestStore(t, time.Hour, &fakeGateway{}, mirror)

	qty, ok := effectiveQty(s, domain.LineKey{ItemID: "p1"})
	require.True(t, ok)
	assert.Equal(t, 2, qty)
}

// 持有令牌时密集编辑合并为一次远端写，只带最终数量
func TestAuthenticatedEditsFlushOnce(t *testing.T) {
	gw := &fakeGateway{nextToken: "tok-2"}
	mirror := newFakeMirror()
	s := newTestStore(t, 20*time.Millisecond, gw, mirror)

	require.NoError(t, s.AddOrIncrementLine(context.Background(), testLine("p1", 3, 100)))
	s.SetCToken("tok-1")

	key := domain.LineKey{ItemID: "p1"}
	require.NoError(t, s.EnqueueQuantityChange(context.Background(), key, 5))
	require.NoError(t, s.EnqueueQuantityChange(context.Background(), key, 7))

	// 乐观视图立即呈现新数量
	qty, _ := effectiveQty(s, key)
	assert.Equal(t, 7, qty)

	require.Eventually(t, func() bool { return gw.updateCount() == 1 }, time.Second, 5*time.Millisecond)

	items := gw.updateCalls[0]
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Quantity)

	// 确认后数量进入权威集合，镜像同步落后一步以内
	require.Eventually(t, func() bool {
		saved, ok := mirror.saved("sess-1")
		return ok && len(saved.Lines) == 1 && saved.Lines[0].Quantity == 7 && saved.CToken == "tok-2"
	}, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, gw.updateCount())
}

// 在途批量写的整个往返期间，乐观数量在有效视图中保持可见
func TestInFlightEditRemainsVisibleInEffectiveView(t *testing.T) {
	gw := &fakeGateway{block: make(chan struct{}), nextToken: "tok-2"}
	mirror := newFakeMirror()
	s := newTestStore(t, 20*time.Millisecond, gw, mirror)

	require.NoError(t, s.AddOrIncrementLine(context.Background(), testLine("p1", 3, 100)))
	s.SetCToken("tok-1")

	key := domain.LineKey{ItemID: "p1"}
	require.NoError(t, s.EnqueueQuantityChange(context.Background(), key, 7))

	require.Eventually(t, func() bool { return s.IsUpdating() }, time.Second, time.Millisecond)

	// 远端尚未确认，编辑不能悄悄退回旧数量
	qty, ok := effectiveQty(s, key)
	require.True(t, ok)
	assert.Equal(t, 7, qty, "in-flight edit must remain visible in the effective view")
	assert.True(t, s.View().IsUpdating)

	close(gw.block)
	require.Eventually(t, func() bool { return !s.IsUpdating() }, time.Second, time.Millisecond)

	qty, _ = effectiveQty(s, key)
	assert.Equal(t, 7, qty, "confirmed quantity stays in place after the flight")
	assert.Empty(t, s.batcher.Pending())
}

// 批量写失败：整批放弃，有效视图回退到最近一次确认的数量
func TestFlushFailureRevertsEffectiveView(t *testing.T) {
	gw := &fakeGateway{updateErr: errors.New("upstream 500")}
	mirror := newFakeMirror()
	s := newTestStore(t, 20*time.Millisecond, gw, mirror)

	require.NoError(t, s.AddOrIncrementLine(context.Background(), testLine("p1", 3, 100)))
	s.SetCToken("tok-1")

	key := domain.LineKey{ItemID: "p1"}
	require.NoError(t, s.EnqueueQuantityChange(context.Background(), key, 7))

	qty, _ := effectiveQty(s, key)
	assert.Equal(t, 7, qty, "edit is visible optimistically before the flush")

	require.Eventually(t, func() bool {
		qty, _ := effectiveQty(s, key)
		return qty == 3
	}, time.Second, 5*time.Millisecond, "failed batch must revert to the confirmed quantity")

	assert.Empty(t, s.batcher.Pending())
	assert.False(t, s.IsUpdating())

	saved, _ := mirror.saved("sess-1")
	assert.Equal(t, 3, saved.Lines[0].Quantity, "mirror keeps the confirmed state")
}

// 会话失效降级为游客：本地提交生效，后续不再上行
func TestUnauthorizedDegradesToLocalCommit(t *testing.T) {
	gw := &fakeGateway{updateErr: domain.ErrUnauthorized}
	mirror := newFakeMirror()
	s := newTestStore(t, 20*time.Millisecond, gw, mirror)

	require.NoError(t, s.AddOrIncrementLine(context.Background(), testLine("p1", 3, 100)))
	s.SetCToken("tok-expired")

	key := domain.LineKey{ItemID: "p1"}
	require.NoError(t, s.EnqueueQuantityChange(context.Background(), key, 7))

	require.Eventually(t, func() bool {
		saved, ok := mirror.saved("sess-1")
		return ok && saved.Lines[0].Quantity == 7
	}, time.Second, 5*time.Millisecond, "rejected session commits locally instead of losing the edit")

	saved, _ := mirror.saved("sess-1")
	assert.Empty(t, saved.CToken, "token is dropped after the auth rejection")

	// 令牌已清空，下一次编辑不再尝试远端
	gw.mu.Lock()
	gw.updateErr = nil
	gw.mu.Unlock()
	require.NoError(t, s.EnqueueQuantityChange(context.Background(), key, 9))
	require.Eventually(t, func() bool {
		saved, _ := mirror.saved("sess-1")
		return saved.Lines[0].Quantity == 9
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, gw.updateCount())
}

func TestEnqueueQuantityChangeValidation(t *testing.T) {
	s := newTestStore(t, time.Hour, &fakeGateway{}, newFakeMirror())
	require.NoError(t, s.AddOrIncrementLine(context.Background(), testLine("p1", 1, 100)))

	err := s.EnqueueQuantityChange(context.Background(), domain.LineKey{ItemID: "p1"}, 0)
	assert.ErrorIs(t, err, domain.ErrQuantityOutOfRange)

	err = s.EnqueueQuantityChange(context.Background(), domain.LineKey{ItemID: "missing"}, 2)
	assert.ErrorIs(t, err, domain.ErrLineNotFound)
}

// 移除立即发送且作废该行的待确认编辑
func TestRemoveLineDiscardsPendingAndCallsRemote(t *testing.T) {
	gw := &fakeGateway{nextToken: "tok-2"}
	mirror := newFakeMirror()
	s := newTestStore(t, time.Hour, gw, mirror) // 长防抖，编辑停留在待确认集合

	require.NoError(t, s.AddOrIncrementLine(context.Background(), testLine("p1", 3, 100)))
	s.SetCToken("tok-1")

	key := domain.LineKey{ItemID: "p1"}
	require.NoError(t, s.EnqueueQuantityChange(context.Background(), key, 7))
	require.NotEmpty(t, s.batcher.Pending())

	require.NoError(t, s.RemoveLine(context.Background(), key))

	assert.Equal(t, 1, gw.removeCount())
	assert.Empty(t, s.batcher.Pending(), "pending edit dies with the removed line")
	assert.Empty(t, s.EffectiveLines())

	saved, _ := mirror.saved("sess-1")
	assert.Empty(t, saved.Lines)
}

func TestRemoveLineGuestSkipsRemote(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestStore(t, time.Hour, gw, newFakeMirror())

	require.NoError(t, s.AddOrIncrementLine(context.Background(), testLine("p1", 3, 100)))
	require.NoError(t, s.RemoveLine(context.Background(), domain.LineKey{ItemID: "p1"}))

	assert.Equal(t, 0, gw.removeCount())
	assert.Empty(t, s.EffectiveLines())
}

func TestRemoveLineRemoteFailureKeepsLine(t *testing.T) {
	gw := &fakeGateway{removeErr: errors.New("upstream 500")}
	s := newTestStore(t, time.Hour, gw, newFakeMirror())

	require.NoError(t, s.AddOrIncrementLine(context.Background(), testLine("p1", 3, 100)))
	s.SetCToken("tok-1")

	err := s.RemoveLine(context.Background(), domain.LineKey{ItemID: "p1"})
	require.Error(t, err)

	qty, ok := effectiveQty(s, domain.LineKey{ItemID: "p1"})
	require.True(t, ok, "failed remove leaves the line in place")
	assert.Equal(t, 3, qty)
}

func TestClearEmptiesCartAndMirror(t *testing.T) {
	mirror := newFakeMirror()
	s := newTestStore(t, time.Hour, &fakeGateway{}, mirror)

	require.NoError(t, s.AddOrIncrementLine(context.Background(), testLine("p1", 3, 100)))
	require.NoError(t, s.Clear(context.Background()))

	assert.Empty(t, s.EffectiveLines())
	_, ok := mirror.saved("sess-1")
	assert.False(t, ok)
}

// 视图：库存超量构成阻塞问题，金额按有效数量计算
func TestViewReportsBlockingStockIssues(t *testing.T) {
	gw := &fakeGateway{}
	s, err := NewCartStore(context.Background(), "sess-1", time.Hour, gw, newFakeMirror(), nil, nil, &stubStocks{
		snapshots: map[string]*stockdomain.ProductStock{
			"p1": {ProductID: "p1", Available: intPtr(2)},
		},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.AddOrIncrementLine(context.Background(), testLine("p1", 5, 100)))

	view := s.View()
	require.True(t, view.StockSummary.HasBlockingIssues)
	require.Len(t, view.StockSummary.BlockingIssues, 1)
	assert.True(t, view.StockSummary.BlockingIssues[0].Assessment.ExceedsStock)
	assert.True(t, decimal.NewFromInt(500).Equal(view.PriceBreakdown.CartSubTotal))
	assert.False(t, view.IsUpdating)
}

func TestSubscribeReceivesChangeSignal(t *testing.T) {
	s := newTestStore(t, time.Hour, &fakeGateway{}, newFakeMirror())
	ch := s.Subscribe()

	require.NoError(t, s.AddOrIncrementLine(context.Background(), testLine("p1", 1, 100)))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a change notification after adding a line")
	}
}

func intPtr(v int) *int { return &v }
