package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartdomain "github.com/deshkart/storefront/internal/cart/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func regularLine(price string, qty int) cartdomain.CartLine {
	return cartdomain.CartLine{ItemID: "p1", Quantity: qty, UnitPrice: dec(price)}
}

func preOrderLine(price, preorderPrice string, qty int) cartdomain.CartLine {
	line := cartdomain.CartLine{ItemID: "p2", Quantity: qty, UnitPrice: dec(price), IsPreOrder: true}
	if preorderPrice != "" {
		p := dec(preorderPrice)
		line.PreorderUnitPrice = &p
	}
	return line
}

func TestCalculateBreakdownRegularOnly(t *testing.T) {
	pb := CalculateBreakdown([]cartdomain.CartLine{regularLine("500", 2)})

	assert.True(t, pb.CartSubTotal.Equal(dec("1000")))
	assert.True(t, pb.RegularSubtotal.Equal(dec("1000")))
	assert.True(t, pb.PreOrderSubtotal.IsZero())
	assert.True(t, pb.DueNowSubtotal.Equal(dec("1000")))
	assert.False(t, pb.HasPreOrderItems)
}

func TestCalculateBreakdownPreOrderSplit(t *testing.T) {
	pb := CalculateBreakdown([]cartdomain.CartLine{preOrderLine("1000", "800", 1)})

	assert.True(t, pb.PreOrderSubtotal.Equal(dec("800")), "preorder price overrides unit price")
	assert.True(t, pb.PreOrderDepositDue.Equal(dec("400")))
	assert.True(t, pb.PreOrderBalanceDue.Equal(dec("400")))
	assert.True(t, pb.DueNowSubtotal.Equal(dec("400")))
	assert.True(t, pb.HasPreOrderItems)
}

func TestCalculateBreakdownPreOrderFallsBackToUnitPrice(t *testing.T) {
	pb := CalculateBreakdown([]cartdomain.CartLine{preOrderLine("1000", "", 2)})
	assert.True(t, pb.PreOrderSubtotal.Equal(dec("2000")))
}

// 定金与余额在任何取整下相加恒等于预售小计
func TestDepositBalanceExactness(t *testing.T) {
	for _, subtotal := range []string{"0", "1", "3", "100.01", "999999"} {
		pb := CalculateBreakdown([]cartdomain.CartLine{preOrderLine(subtotal, "", 1)})

		sum := pb.PreOrderDepositDue.Add(pb.PreOrderBalanceDue)
		require.True(t, sum.Equal(dec(subtotal)),
			"subtotal %s: deposit %s + balance %s = %s", subtotal, pb.PreOrderDepositDue, pb.PreOrderBalanceDue, sum)
	}
}

func TestDepositRoundsHalfUp(t *testing.T) {
	// 3 × 0.5 = 1.5 → 定金取整为 2，余额 1
	pb := CalculateBreakdown([]cartdomain.CartLine{preOrderLine("3", "", 1)})
	assert.True(t, pb.PreOrderDepositDue.Equal(dec("2")))
	assert.True(t, pb.PreOrderBalanceDue.Equal(dec("1")))
}

func TestCalculateBreakdownEmptyCart(t *testing.T) {
	pb := CalculateBreakdown(nil)

	assert.True(t, pb.CartSubTotal.IsZero())
	assert.True(t, pb.RegularSubtotal.IsZero())
	assert.True(t, pb.PreOrderSubtotal.IsZero())
	assert.True(t, pb.PreOrderDepositDue.IsZero())
	assert.True(t, pb.PreOrderBalanceDue.IsZero())
	assert.True(t, pb.DueNowSubtotal.IsZero())
	assert.False(t, pb.HasPreOrderItems)
}

func TestCalculateBreakdownMixedCart(t *testing.T) {
	pb := CalculateBreakdown([]cartdomain.CartLine{
		regularLine("250", 2),
		preOrderLine("1000", "800", 1),
	})

	assert.True(t, pb.RegularSubtotal.Equal(dec("500")))
	assert.True(t, pb.PreOrderSubtotal.Equal(dec("800")))
	assert.True(t, pb.CartSubTotal.Equal(dec("1300")))
	assert.True(t, pb.DueNowSubtotal.Equal(dec("900")))
}
