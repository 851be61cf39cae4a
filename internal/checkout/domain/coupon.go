package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrCouponRejected 优惠码无效/过期/不适用，属于预期路径，不改变购物车状态
var ErrCouponRejected = errors.New("coupon rejected")

// Coupon 远端校验通过的优惠码，折扣在顶层总额上一次性扣减
type Coupon struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	DiscountType   string          `json:"discount_type"`
}

// CouponGateway 远端优惠码校验接口
type CouponGateway interface {
	Validate(ctx context.Context, code string, cartSubtotal decimal.Decimal) (*Coupon, error)
}
