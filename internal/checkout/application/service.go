package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	cartdomain "github.com/deshkart/storefront/internal/cart/domain"
	"github.com/deshkart/storefront/internal/checkout/domain"
	pricingdomain "github.com/deshkart/storefront/internal/pricing/domain"
	"github.com/deshkart/storefront/pkg/logger"
	"github.com/deshkart/storefront/pkg/metrics"
)

// LinesProvider 返回某会话当前的有效行视图
type LinesProvider func(ctx context.Context, sessionID string) ([]cartdomain.CartLine, error)

// CheckoutService 结算服务：报价、优惠码申请与撤销
// 优惠码按会话保存，校验失败属于预期路径，不触碰购物车状态
type CheckoutService struct {
	gateway domain.CouponGateway
	lines   LinesProvider
	metrics *metrics.Metrics

	mu      sync.Mutex
	coupons map[string]*domain.Coupon
}

// NewCheckoutService 创建结算服务
func NewCheckoutService(gateway domain.CouponGateway, lines LinesProvider, m *metrics.Metrics) *CheckoutService {
	return &CheckoutService{
		gateway: gateway,
		lines:   lines,
		metrics: m,
		coupons: make(map[string]*domain.Coupon),
	}
}

// Quote 计算某支付方式/目的地下的结算金额拆分与最终合计
func (s *CheckoutService) Quote(ctx context.Context, sessionID string, method domain.PaymentMethod, cityKey string) (domain.PaymentBreakdown, domain.CheckoutTotals, error) {
	lines, err := s.lines(ctx, sessionID)
	if err != nil {
		return domain.PaymentBreakdown{}, domain.CheckoutTotals{}, err
	}

	pb := domain.CalculatePayment(lines, method, cityKey)
	totals := domain.ComposeTotals(pb, s.Coupon(sessionID))
	return pb, totals, nil
}

// ApplyCoupon 远端校验优惠码并绑定到会话
func (s *CheckoutService) ApplyCoupon(ctx context.Context, sessionID, code string) (*domain.Coupon, error) {
	lines, err := s.lines(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	subtotal := pricingdomain.CalculateBreakdown(lines).CartSubTotal

	if s.metrics != nil {
		s.metrics.CouponValidationsTotal.Inc()
	}

	coupon, err := s.gateway.Validate(ctx, code, subtotal)
	switch {
	case errors.Is(err, domain.ErrCouponRejected):
		// 业务拒绝属于预期路径，不触碰购物车状态
		if s.metrics != nil {
			s.metrics.CouponRejectionsTotal.Inc()
		}
		logger.Info(ctx, "coupon rejected", "session_id", sessionID, "code", code, "error", err)
		return nil, err
	case err != nil:
		// 传输失败不是拒绝，不能让用户误以为优惠码无效
		logger.Error(ctx, "coupon validation failed", "session_id", sessionID, "code", code, "error", err)
		return nil, fmt.Errorf("validate coupon: %w", err)
	}

	s.mu.Lock()
	s.coupons[sessionID] = coupon
	s.mu.Unlock()
	return coupon, nil
}

// RemoveCoupon 撤销会话绑定的优惠码
func (s *CheckoutService) RemoveCoupon(sessionID string) {
	s.mu.Lock()
	delete(s.coupons, sessionID)
	s.mu.Unlock()
}

// Coupon 返回会话当前生效的优惠码，没有则为 nil
func (s *CheckoutService) Coupon(sessionID string) *domain.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coupons[sessionID]
}
