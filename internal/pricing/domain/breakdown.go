package domain

import (
	"github.com/shopspring/decimal"

	cartdomain "github.com/deshkart/storefront/internal/cart/domain"
)

var depositRate = decimal.NewFromFloat(0.5)

// PriceBreakdown 购物车金额拆分，派生数据，按需重算
type PriceBreakdown struct {
	CartSubTotal       decimal.Decimal `json:"cart_sub_total"`
	RegularSubtotal    decimal.Decimal `json:"regular_subtotal"`
	PreOrderSubtotal   decimal.Decimal `json:"pre_order_subtotal"`
	PreOrderDepositDue decimal.Decimal `json:"pre_order_deposit_due"`
	PreOrderBalanceDue decimal.Decimal `json:"pre_order_balance_due"`
	DueNowSubtotal     decimal.Decimal `json:"due_now_subtotal"`
	HasPreOrderItems   bool            `json:"has_pre_order_items"`
}

// RoundMoney 金额取整到货币最小单位（整数位），四舍五入只做一次，下游不再重复取整
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// CalculateBreakdown 计算购物车金额拆分
// 定金取整后余额用减法求出，保证 deposit + balance 恒等于预售小计
func CalculateBreakdown(lines []cartdomain.CartLine) PriceBreakdown {
	regular := decimal.Zero
	preOrder := decimal.Zero

	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		amount := line.EffectiveUnitPrice().Mul(qty)
		if line.IsPreOrder {
			preOrder = preOrder.Add(amount)
		} else {
			regular = regular.Add(amount)
		}
	}

	deposit := RoundMoney(preOrder.Mul(depositRate))
	balance := preOrder.Sub(deposit)

	return PriceBreakdown{
		CartSubTotal:       regular.Add(preOrder),
		RegularSubtotal:    regular,
		PreOrderSubtotal:   preOrder,
		PreOrderDepositDue: deposit,
		PreOrderBalanceDue: balance,
		DueNowSubtotal:     regular.Add(deposit),
		HasPreOrderItems:   preOrder.IsPositive(),
	}
}
