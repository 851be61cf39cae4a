package application

import (
	"context"
	"sync"
	"time"

	"github.com/deshkart/storefront/internal/cart/domain"
)

// FlushFunc 把一批合并后的数量变更一次性落到远端并提交/回滚
// 返回错误只代表该批次终结，批量器不会重试
type FlushFunc func(ctx context.Context, updates []domain.PendingUpdate) error

// UpdateBatcher 把密集的数量编辑合并成低频的远端写
//
// 状态机：Idle →（入队）→ Pending（计时中）→（静默期满）→ Flushing → Idle/Pending。
// 同一标识键后写覆盖先写；任意时刻最多一个批次在途；在途期间新到的编辑
// 被暂存，等在途批次结束后开启新一轮防抖周期。
// 在途批次在整个往返期间仍作为数量覆盖暴露，成功提交或失败回滚后才消失。
type UpdateBatcher struct {
	mu       sync.Mutex
	pending  map[domain.LineKey]domain.PendingUpdate
	inflight map[domain.LineKey]domain.PendingUpdate
	timer    *time.Timer
	gen      uint64
	quiet    time.Duration
	flush    FlushFunc

	closed bool
}

// NewUpdateBatcher 创建批量器，quiet 为防抖静默窗口
func NewUpdateBatcher(quiet time.Duration, flush FlushFunc) *UpdateBatcher {
	return &UpdateBatcher{
		pending: make(map[domain.LineKey]domain.PendingUpdate),
		quiet:   quiet,
		flush:   flush,
	}
}

// Enqueue 入队一条数量变更并重置防抖计时器
// 防抖而非节流：只有连续静默一个窗口之后才会触发写
func (b *UpdateBatcher) Enqueue(update domain.PendingUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.pending[update.Key()] = update
	b.resetTimerLocked()
}

// Discard 丢弃某一行的待确认变更（行被移除时调用）
func (b *UpdateBatcher) Discard(key domain.LineKey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, key)
	delete(b.inflight, key)
}

// Pending 返回当前待确认的数量覆盖，供有效视图使用
// 在途批次也算未确认：整个往返期间编辑保持可见，在途期间的新编辑优先
func (b *UpdateBatcher) Pending() map[domain.LineKey]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[domain.LineKey]int, len(b.pending)+len(b.inflight))
	for key, update := range b.inflight {
		out[key] = update.NewQuantity
	}
	for key, update := range b.pending {
		out[key] = update.NewQuantity
	}
	return out
}

// InFlight 是否有批次在途
func (b *UpdateBatcher) InFlight() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inflight != nil
}

// Close 停止计时器，组件销毁后不允许再触发写
func (b *UpdateBatcher) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// resetTimerLocked 取消旧计时器并重新开始静默窗口，调用方必须持锁
func (b *UpdateBatcher) resetTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(b.quiet, func() { b.onTimer(gen) })
}

// onTimer 静默期满；过期代数的触发直接忽略
func (b *UpdateBatcher) onTimer(gen uint64) {
	b.mu.Lock()
	if b.closed || gen != b.gen || b.inflight != nil || len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}

	// 摘下当前批次转入在途覆盖，往返期间编辑保持可见；
	// 在途期间的新编辑进入新的 pending 集合
	batch := make([]domain.PendingUpdate, 0, len(b.pending))
	for _, update := range b.pending {
		batch = append(batch, update)
	}
	b.inflight = b.pending
	b.pending = make(map[domain.LineKey]domain.PendingUpdate)
	b.mu.Unlock()

	// 成败都不重试：成功由 flush 提交进权威集合，失败则覆盖随批次
	// 一并消失，视图回退到最近一次确认的数量
	_ = b.flush(context.Background(), batch)

	b.mu.Lock()
	b.inflight = nil
	if !b.closed && len(b.pending) > 0 {
		// 在途期间有新编辑，开启新一轮防抖周期
		b.resetTimerLocked()
	}
	b.mu.Unlock()
}
