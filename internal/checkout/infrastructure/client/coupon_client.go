package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/deshkart/storefront/internal/checkout/domain"
)

// CouponClient 上游优惠码校验接口的 HTTP 客户端
type CouponClient struct {
	http *resty.Client
}

// NewCouponClient 创建优惠码客户端
func NewCouponClient(baseURL string, timeout time.Duration) *CouponClient {
	return &CouponClient{
		http: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
	}
}

type validateCouponRequest struct {
	Code         string          `json:"code"`
	CartSubtotal decimal.Decimal `json:"cart_subtotal"`
}

type validateCouponResponse struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	DiscountType   string          `json:"discount_type"`
	Message        string          `json:"message,omitempty"`
}

// Validate 远端校验优惠码
// 4xx 表示业务拒绝（无效/过期/不适用），包装成 ErrCouponRejected；
// 传输失败与 5xx 是普通错误，不得伪装成拒绝误导用户
func (c *CouponClient) Validate(ctx context.Context, code string, cartSubtotal decimal.Decimal) (*domain.Coupon, error) {
	var out validateCouponResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(validateCouponRequest{Code: code, CartSubtotal: cartSubtotal}).
		SetResult(&out).
		SetError(&out).
		Post("/api/coupons/validate")
	if err != nil {
		return nil, fmt.Errorf("validate coupon: %w", err)
	}
	if resp.IsError() {
		if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
			message := out.Message
			if message == "" {
				message = "invalid coupon code"
			}
			return nil, fmt.Errorf("%w: %s", domain.ErrCouponRejected, message)
		}
		return nil, fmt.Errorf("validate coupon: unexpected status %d", resp.StatusCode())
	}

	return &domain.Coupon{
		Code:           out.Code,
		DiscountAmount: out.DiscountAmount,
		DiscountType:   out.DiscountType,
	}, nil
}
