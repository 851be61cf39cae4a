package domain

import (
	"fmt"

	cartdomain "github.com/deshkart/storefront/internal/cart/domain"
)

// DefaultLowStockThreshold 低库存默认阈值，商品可单独覆盖
const DefaultLowStockThreshold = 5

// ColorVariantStock 单个颜色变体的库存快照
type ColorVariantStock struct {
	ColorName      string `json:"color_name"`
	AvailableStock int    `json:"available_stock"`
}

// ProductStock 外部提供的商品库存快照
// 无变体商品回退到聚合的 Available 字段，快照缺失视为不受约束
type ProductStock struct {
	ProductID string              `json:"product_id"`
	Colors    []ColorVariantStock `json:"colors,omitempty"`
	Available *int                `json:"available,omitempty"`
}

// ForColor 解析指定颜色的可用库存，color 为空时取聚合库存，无数据返回 nil
func (p *ProductStock) ForColor(color string) *int {
	if p == nil {
		return nil
	}
	if color != "" {
		for i := range p.Colors {
			if p.Colors[i].ColorName == color {
				return &p.Colors[i].AvailableStock
			}
		}
		return nil
	}
	return p.Available
}

// StockAssessment 单行库存评估结果，派生数据，不落盘
type StockAssessment struct {
	IsOutOfStock   bool   `json:"is_out_of_stock"`
	IsLowStock     bool   `json:"is_low_stock"`
	ExceedsStock   bool   `json:"exceeds_stock"`
	AvailableStock *int   `json:"available_stock,omitempty"`
	Message        string `json:"message,omitempty"`
}

// Assess 对单行做库存评估
// override 存在时以待确认数量为准，快照缺失时不产生任何库存信号
func Assess(line cartdomain.CartLine, stock *ProductStock, override *int) StockAssessment {
	quantity := line.Quantity
	if override != nil {
		quantity = *override
	}

	available := stock.ForColor(line.Color)
	if available == nil {
		// 没有数据不能悄悄阻塞结算，只能表现为"未确认有货"
		return StockAssessment{}
	}

	threshold := line.LowStockThreshold
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}

	a := StockAssessment{AvailableStock: available}
	switch {
	case *available == 0:
		a.IsOutOfStock = true
		a.Message = "Out of stock"
	case quantity > *available:
		a.ExceedsStock = true
		a.Message = fmt.Sprintf("Only %d available in stock", *available)
	}
	if *available > 0 && *available <= threshold {
		a.IsLowStock = true
		if a.Message == "" {
			a.Message = fmt.Sprintf("Only %d available in stock", *available)
		}
	}
	return a
}

// LineIssue 某一行的库存问题
type LineIssue struct {
	Line       cartdomain.CartLine `json:"line"`
	Assessment StockAssessment     `json:"assessment"`
}

// CartStockSummary 整车库存汇总
// 阻塞问题（售罄/超量）必须先解决才能进入结算，低库存仅作提示
type CartStockSummary struct {
	BlockingIssues    []LineIssue `json:"blocking_issues"`
	WarningIssues     []LineIssue `json:"warning_issues"`
	HasBlockingIssues bool        `json:"has_blocking_issues"`
}

// Summarize 按行评估并划分阻塞与提示两类问题
// 传入的行应当已带上待确认数量（有效视图）
func Summarize(lines []cartdomain.CartLine, stocks map[string]*ProductStock) CartStockSummary {
	var summary CartStockSummary
	for _, line := range lines {
		a := Assess(line, stocks[line.ItemID], nil)
		switch {
		case a.IsOutOfStock || a.ExceedsStock:
			summary.BlockingIssues = append(summary.BlockingIssues, LineIssue{Line: line, Assessment: a})
		case a.IsLowStock:
			summary.WarningIssues = append(summary.WarningIssues, LineIssue{Line: line, Assessment: a})
		}
	}
	summary.HasBlockingIssues = len(summary.BlockingIssues) > 0
	return summary
}
