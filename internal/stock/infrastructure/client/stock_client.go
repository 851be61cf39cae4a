package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/deshkart/storefront/internal/stock/domain"
)

// StockClient 上游库存读接口的 HTTP 客户端
type StockClient struct {
	http *resty.Client
}

// NewStockClient 创建库存客户端
func NewStockClient(baseURL string, timeout time.Duration) *StockClient {
	return &StockClient{
		http: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
	}
}

type colorStockResponse struct {
	ProductID string `json:"product_id"`
	Colors    []struct {
		ColorName      string `json:"color_name"`
		AvailableStock int    `json:"available_stock"`
	} `json:"colors"`
	AvailableStock *int `json:"available_stock,omitempty"`
}

// ColorVariationStock 拉取商品的颜色变体库存快照
func (c *StockClient) ColorVariationStock(ctx context.Context, productID string) (*domain.ProductStock, error) {
	var out colorStockResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/api/products/%s/color-stock", productID))
	if err != nil {
		return nil, fmt.Errorf("fetch color variation stock: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch color variation stock: unexpected status %d", resp.StatusCode())
	}

	stock := &domain.ProductStock{
		ProductID: productID,
		Available: out.AvailableStock,
	}
	for _, c := range out.Colors {
		stock.Colors = append(stock.Colors, domain.ColorVariantStock{
			ColorName:      c.ColorName,
			AvailableStock: c.AvailableStock,
		})
	}
	return stock, nil
}
