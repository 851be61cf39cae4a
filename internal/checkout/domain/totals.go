package domain

import "github.com/shopspring/decimal"

// CheckoutTotals 结算最终合计
type CheckoutTotals struct {
	TotalPayable   decimal.Decimal `json:"total_payable"`
	DueNowTotal    decimal.Decimal `json:"due_now_total"`
	PayLaterAmount decimal.Decimal `json:"pay_later_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// ComposeTotals 组合最终合计
// 折扣只在顶层扣减一次，绝不摊进预售定金；due-now 不会为负
func ComposeTotals(pb PaymentBreakdown, coupon *Coupon) CheckoutTotals {
	shipping := decimal.Zero
	if pb.ShippingCharge != nil {
		shipping = *pb.ShippingCharge
	}

	discount := decimal.Zero
	if coupon != nil {
		discount = coupon.DiscountAmount
	}

	charges := shipping.Add(pb.CODCharge).Add(pb.BKashCharge)

	dueNow := pb.DueNowSubtotal.Add(charges).Sub(discount)
	if dueNow.IsNegative() {
		dueNow = decimal.Zero
	}

	payLater := decimal.Zero
	if pb.HasPreOrderItems {
		payLater = pb.PreOrderBalanceDue
	}

	return CheckoutTotals{
		TotalPayable:   pb.CartSubTotal.Add(charges).Sub(discount),
		DueNowTotal:    dueNow,
		PayLaterAmount: payLater,
		DiscountAmount: discount,
	}
}
