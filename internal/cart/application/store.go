package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deshkart/storefront/internal/cart/domain"
	pricingdomain "github.com/deshkart/storefront/internal/pricing/domain"
	stockdomain "github.com/deshkart/storefront/internal/stock/domain"
	"github.com/deshkart/storefront/pkg/logger"
	"github.com/deshkart/storefront/pkg/metrics"
)

// StockProvider 提供当前最新的库存快照，只读，由轮询器在后台刷新
type StockProvider interface {
	Snapshot(productID string) *stockdomain.ProductStock
}

// View 暴露给 UI 层的响应式视图，每次相关状态变化后重算
type View struct {
	Lines          []domain.CartLine            `json:"lines"`
	StockSummary   stockdomain.CartStockSummary `json:"stock_summary"`
	PriceBreakdown pricingdomain.PriceBreakdown `json:"price_breakdown"`
	IsUpdating     bool                         `json:"is_updating"`
}

// CartStore 购物车同步存储
//
// 持有权威行集合与持久化镜像，编排批量器并把远端确认写回两层。
// 权威购物车与待确认集合只归本存储所有，镜像永远在权威提交之后写入
// （write-after-commit），崩溃最多落后一步，不会写坏。
type CartStore struct {
	sessionID string

	mu   sync.Mutex // 保护 cart
	cart domain.Cart

	// opMu 串行化移除与批量写，两者绝不在同一购物车上竞争
	opMu       sync.Mutex
	isUpdating atomic.Bool

	batcher   *UpdateBatcher
	gateway   domain.CartGateway
	mirror    domain.CartMirrorRepository
	publisher domain.EventPublisher
	notifier  domain.Notifier
	stocks    StockProvider
	metrics   *metrics.Metrics

	subMu       sync.Mutex
	subscribers []chan struct{}
}

// NewCartStore 创建购物车存储并从镜像恢复上次状态
func NewCartStore(
	ctx context.Context,
	sessionID string,
	debounce time.Duration,
	gateway domain.CartGateway,
	mirror domain.CartMirrorRepository,
	publisher domain.EventPublisher,
	notifier domain.Notifier,
	stocks StockProvider,
	m *metrics.Metrics,
) (*CartStore, error) {
	s := &CartStore{
		sessionID: sessionID,
		gateway:   gateway,
		mirror:    mirror,
		publisher: publisher,
		notifier:  notifier,
		stocks:    stocks,
		metrics:   m,
	}
	s.batcher = NewUpdateBatcher(debounce, s.flushBatch)

	if mirror != nil {
		cart, err := mirror.Load(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load cart mirror: %w", err)
		}
		if cart != nil {
			s.cart = *cart
		}
	}
	return s, nil
}

// SessionID 返回会话标识
func (s *CartStore) SessionID() string { return s.sessionID }

// SetCToken 由外围认证层注入服务端购物车令牌；空令牌即游客模式
func (s *CartStore) SetCToken(token string) {
	s.mu.Lock()
	s.cart.CToken = token
	s.mu.Unlock()
}

// AddOrIncrementLine 添加商品；相同标识键的行合并计数而不是重复出现
// 本地提交即权威，持有令牌时同时入队数量同步让远端收敛
func (s *CartStore) AddOrIncrementLine(ctx context.Context, line domain.CartLine) error {
	if err := line.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.cart.AddOrIncrement(line); err != nil {
		s.mu.Unlock()
		return err
	}
	merged, _ := s.cart.Find(line.Key())
	quantity := merged.Quantity
	hasToken := s.cart.CToken != ""
	snapshot := s.cart.Clone()
	s.mu.Unlock()

	if hasToken {
		s.batcher.Enqueue(domain.PendingUpdate{
			ItemID:      line.ItemID,
			Color:       line.Color,
			IsPreOrder:  line.IsPreOrder,
			NewQuantity: quantity,
		})
	}

	s.persistAndNotify(ctx, snapshot)
	return nil
}

// EnqueueQuantityChange 入队一次数量编辑，乐观生效，防抖后合并上行
func (s *CartStore) EnqueueQuantityChange(ctx context.Context, key domain.LineKey, quantity int) error {
	if quantity < domain.MinQuantity || quantity > domain.MaxQuantity {
		return domain.ErrQuantityOutOfRange
	}

	s.mu.Lock()
	_, ok := s.cart.Find(key)
	s.mu.Unlock()
	if !ok {
		return domain.ErrLineNotFound
	}

	s.batcher.Enqueue(domain.PendingUpdate{
		ItemID:      key.ItemID,
		Color:       key.Color,
		IsPreOrder:  key.IsPreOrder,
		NewQuantity: quantity,
	})
	s.notifySubscribers()
	return nil
}

// RemoveLine 移除行；不走批量通道，立即发送，但与批量写共用同一把闸
func (s *CartStore) RemoveLine(ctx context.Context, key domain.LineKey) error {
	s.mu.Lock()
	_, ok := s.cart.Find(key)
	ctoken := s.cart.CToken
	s.mu.Unlock()
	if !ok {
		return domain.ErrLineNotFound
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.isUpdating.Store(true)
	defer s.isUpdating.Store(false)

	// 该行未上行的数量编辑随移除一并作废
	s.batcher.Discard(key)

	if ctoken != "" {
		newToken, err := s.gateway.RemoveCartItem(ctx, key.ItemID, key.Color, ctoken)
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			// 会话失效按游客处理，本地继续生效，避免丢购物车
			logger.Warn(ctx, "remove rejected for auth reasons, applying locally", "session_id", s.sessionID)
			ctoken = ""
		case err != nil:
			s.notifyError(ctx, "Failed to remove item, please try again")
			return fmt.Errorf("remove cart item: %w", err)
		default:
			ctoken = newToken
		}
	}

	s.mu.Lock()
	if err := s.cart.Remove(key); err != nil {
		s.mu.Unlock()
		return err
	}
	s.cart.CToken = ctoken
	snapshot := s.cart.Clone()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CartRemovalsTotal.Inc()
	}
	s.persistAndNotify(ctx, snapshot)
	if s.publisher != nil {
		_ = s.publisher.PublishLineRemoved(ctx, domain.CartLineRemovedEvent{
			SessionID: s.sessionID,
			ItemID:    key.ItemID,
			Color:     key.Color,
			Timestamp: time.Now(),
		})
	}
	return nil
}

// Clear 下单成功后清空购物车
func (s *CartStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.cart.Lines = nil
	s.mu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.Clear(ctx, s.sessionID); err != nil {
			return fmt.Errorf("clear cart mirror: %w", err)
		}
	}
	if s.publisher != nil {
		_ = s.publisher.PublishCartCleared(ctx, domain.CartClearedEvent{
			SessionID: s.sessionID,
			Timestamp: time.Now(),
		})
	}
	s.notifySubscribers()
	return nil
}

// EffectiveLines 有效行视图：存在待确认编辑的行以新数量呈现（乐观）
func (s *CartStore) EffectiveLines() []domain.CartLine {
	pending := s.batcher.Pending()

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]domain.CartLine, len(s.cart.Lines))
	copy(lines, s.cart.Lines)
	for i := range lines {
		if qty, ok := pending[lines[i].Key()]; ok {
			lines[i].Quantity = qty
		}
	}
	return lines
}

// ProductIDs 当前购物车涉及的商品，供库存轮询器使用
func (s *CartStore) ProductIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(s.cart.Lines))
	ids := make([]string, 0, len(s.cart.Lines))
	for _, line := range s.cart.Lines {
		if _, ok := seen[line.ItemID]; ok {
			continue
		}
		seen[line.ItemID] = struct{}{}
		ids = append(ids, line.ItemID)
	}
	return ids
}

// IsUpdating 是否有移除或批量写在途
func (s *CartStore) IsUpdating() bool {
	return s.isUpdating.Load() || s.batcher.InFlight()
}

// View 组装响应式视图：有效行、库存汇总、金额拆分与在途标记
// 库存评估与金额计算都是纯函数，这里每次都基于当前状态重算
func (s *CartStore) View() View {
	lines := s.EffectiveLines()

	s.mu.Lock()
	provider := s.stocks
	s.mu.Unlock()

	stocks := make(map[string]*stockdomain.ProductStock, len(lines))
	if provider != nil {
		for _, line := range lines {
			if _, ok := stocks[line.ItemID]; !ok {
				stocks[line.ItemID] = provider.Snapshot(line.ItemID)
			}
		}
	}

	return View{
		Lines:          lines,
		StockSummary:   stockdomain.Summarize(lines, stocks),
		PriceBreakdown: pricingdomain.CalculateBreakdown(lines),
		IsUpdating:     s.IsUpdating(),
	}
}

// Subscribe 订阅变更通知，镜像每次写入后其他视图应重新读取最新状态
func (s *CartStore) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.subMu.Unlock()
	return ch
}

// Close 销毁存储，取消待触发的防抖计时器
func (s *CartStore) Close() {
	s.batcher.Close()
}

// flushBatch 批量器静默期满后的唯一写路径
// 成功则把每个排队数量提交进权威购物车并落镜像；失败则整批放弃，
// 视图回退到最近一次服务端确认的数量
func (s *CartStore) flushBatch(ctx context.Context, updates []domain.PendingUpdate) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.isUpdating.Store(true)
	defer s.isUpdating.Store(false)

	start := time.Now()
	if s.metrics != nil {
		s.metrics.CartFlushesTotal.Inc()
		defer func() {
			s.metrics.CartFlushDuration.Observe(time.Since(start).Seconds())
		}()
	}

	s.mu.Lock()
	ctoken := s.cart.CToken
	s.mu.Unlock()

	if ctoken != "" {
		items := make([]domain.UpdateItem, 0, len(updates))
		for _, u := range updates {
			items = append(items, domain.UpdateItem{ItemID: u.ItemID, Color: u.Color, Quantity: u.NewQuantity})
		}

		newToken, err := s.gateway.UpdateCartItems(ctx, items, ctoken)
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			// 会话失效等价于游客购物车：本地提交，不算失败
			logger.Warn(ctx, "batch write rejected for auth reasons, committing locally", "session_id", s.sessionID)
			ctoken = ""
		case err != nil:
			if s.metrics != nil {
				s.metrics.CartFlushFailuresTotal.Inc()
			}
			logger.Error(ctx, "cart batch write failed", "session_id", s.sessionID, "updates", len(updates), "error", err)
			s.notifyError(ctx, "Failed to update cart, your changes were reverted")
			s.notifySubscribers()
			return err
		default:
			ctoken = newToken
		}
	}

	s.mu.Lock()
	for _, u := range updates {
		// 在途期间被移除的行直接跳过
		_ = s.cart.SetQuantity(u.Key(), u.NewQuantity)
	}
	s.cart.CToken = ctoken
	snapshot := s.cart.Clone()
	s.mu.Unlock()

	s.persistAndNotify(ctx, snapshot)
	if s.notifier != nil {
		s.notifier.Success(ctx, "Cart updated")
	}
	return nil
}

// persistAndNotify 权威提交之后写镜像并广播变更
func (s *CartStore) persistAndNotify(ctx context.Context, snapshot domain.Cart) {
	if s.mirror != nil {
		if err := s.mirror.Save(ctx, s.sessionID, &snapshot); err != nil {
			logger.Error(ctx, "cart mirror write failed", "session_id", s.sessionID, "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.CartLinesActive.Set(float64(len(snapshot.Lines)))
	}
	if s.publisher != nil {
		_ = s.publisher.PublishCartChanged(ctx, domain.CartChangedEvent{
			SessionID: s.sessionID,
			CToken:    snapshot.CToken,
			Lines:     snapshot.Lines,
			Timestamp: time.Now(),
		})
	}
	s.notifySubscribers()
}

func (s *CartStore) notifyError(ctx context.Context, message string) {
	if s.notifier != nil {
		s.notifier.Error(ctx, message)
	}
}

func (s *CartStore) notifySubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
