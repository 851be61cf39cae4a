package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartdomain "github.com/deshkart/storefront/internal/cart/domain"
)

func intPtr(n int) *int { return &n }

func stockLine(itemID, color string, qty int) cartdomain.CartLine {
	return cartdomain.CartLine{ItemID: itemID, Color: color, Quantity: qty}
}

func TestAssessOutOfStock(t *testing.T) {
	stock := &ProductStock{ProductID: "p1", Available: intPtr(0)}
	a := Assess(stockLine("p1", "", 1), stock, nil)

	assert.True(t, a.IsOutOfStock)
	assert.False(t, a.ExceedsStock)
	assert.Equal(t, "Out of stock", a.Message)
}

func TestAssessExceedsStock(t *testing.T) {
	stock := &ProductStock{ProductID: "p1", Available: intPtr(3)}
	a := Assess(stockLine("p1", "", 7), stock, nil)

	assert.True(t, a.ExceedsStock)
	assert.False(t, a.IsOutOfStock)
	assert.Equal(t, "Only 3 available in stock", a.Message)
}

func TestAssessLowStock(t *testing.T) {
	stock := &ProductStock{ProductID: "p1", Available: intPtr(4)}
	a := Assess(stockLine("p1", "", 2), stock, nil)

	assert.True(t, a.IsLowStock)
	assert.False(t, a.ExceedsStock)
	assert.Equal(t, "Only 4 available in stock", a.Message)
}

func TestAssessLowStockThresholdOverride(t *testing.T) {
	stock := &ProductStock{ProductID: "p1", Available: intPtr(8)}

	defaultThreshold := Assess(stockLine("p1", "", 1), stock, nil)
	assert.False(t, defaultThreshold.IsLowStock)

	line := stockLine("p1", "", 1)
	line.LowStockThreshold = 10
	overridden := Assess(line, stock, nil)
	assert.True(t, overridden.IsLowStock)
}

// 快照缺失视为不受约束，不产生任何库存信号
func TestAssessNoSnapshotIsUnconstrained(t *testing.T) {
	a := Assess(stockLine("p1", "", 9999), nil, nil)

	assert.False(t, a.IsOutOfStock)
	assert.False(t, a.IsLowStock)
	assert.False(t, a.ExceedsStock)
	assert.Nil(t, a.AvailableStock)
}

func TestAssessColorVariantResolution(t *testing.T) {
	stock := &ProductStock{
		ProductID: "p1",
		Colors: []ColorVariantStock{
			{ColorName: "red", AvailableStock: 2},
			{ColorName: "blue", AvailableStock: 50},
		},
	}

	red := Assess(stockLine("p1", "red", 5), stock, nil)
	assert.True(t, red.ExceedsStock)

	blue := Assess(stockLine("p1", "blue", 5), stock, nil)
	assert.False(t, blue.ExceedsStock)
	assert.False(t, blue.IsLowStock)

	// 未知颜色没有数据，不受约束
	green := Assess(stockLine("p1", "green", 5), stock, nil)
	assert.False(t, green.ExceedsStock)
	assert.Nil(t, green.AvailableStock)
}

func TestAssessQuantityOverride(t *testing.T) {
	stock := &ProductStock{ProductID: "p1", Available: intPtr(10)}

	a := Assess(stockLine("p1", "", 2), stock, intPtr(15))
	assert.True(t, a.ExceedsStock, "override takes precedence over committed quantity")
}

// 库存下降到有效数量以下时阻塞出现，恢复后阻塞消失，无残留状态
func TestBlockingMonotonicity(t *testing.T) {
	lines := []cartdomain.CartLine{stockLine("p1", "", 5)}

	low := Summarize(lines, map[string]*ProductStock{"p1": {ProductID: "p1", Available: intPtr(3)}})
	require.True(t, low.HasBlockingIssues)

	recovered := Summarize(lines, map[string]*ProductStock{"p1": {ProductID: "p1", Available: intPtr(10)}})
	assert.False(t, recovered.HasBlockingIssues)
	assert.Empty(t, recovered.BlockingIssues)
}

func TestSummarizePartitionsIssues(t *testing.T) {
	lines := []cartdomain.CartLine{
		stockLine("oos", "", 1),
		stockLine("exceeds", "", 9),
		stockLine("low", "", 1),
		stockLine("fine", "", 1),
	}
	stocks := map[string]*ProductStock{
		"oos":     {ProductID: "oos", Available: intPtr(0)},
		"exceeds": {ProductID: "exceeds", Available: intPtr(6)},
		"low":     {ProductID: "low", Available: intPtr(2)},
		"fine":    {ProductID: "fine", Available: intPtr(100)},
	}

	summary := Summarize(lines, stocks)

	require.Len(t, summary.BlockingIssues, 2)
	require.Len(t, summary.WarningIssues, 1)
	assert.True(t, summary.HasBlockingIssues)
	assert.Equal(t, "low", summary.WarningIssues[0].Line.ItemID)
}

// 超量同时低库存的行只算阻塞，不重复归为提示
func TestSummarizeBlockingWinsOverWarning(t *testing.T) {
	lines := []cartdomain.CartLine{stockLine("p1", "", 9)}
	stocks := map[string]*ProductStock{"p1": {ProductID: "p1", Available: intPtr(3)}}

	summary := Summarize(lines, stocks)

	assert.Len(t, summary.BlockingIssues, 1)
	assert.Empty(t, summary.WarningIssues)
}
