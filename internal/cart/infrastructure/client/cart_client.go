package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/deshkart/storefront/internal/cart/domain"
)

// CartClient 上游商城购物车写接口的 HTTP 客户端
type CartClient struct {
	http *resty.Client
}

// NewCartClient 创建购物车客户端
func NewCartClient(baseURL string, timeout time.Duration) *CartClient {
	return &CartClient{
		http: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
	}
}

type updateCartRequest struct {
	Items  []domain.UpdateItem `json:"items"`
	CToken string              `json:"ctoken,omitempty"`
}

type cartWriteResponse struct {
	CToken    string `json:"ctoken"`
	Confirmed bool   `json:"confirmed"`
}

// UpdateCartItems 提交合并后的批量数量变更
func (c *CartClient) UpdateCartItems(ctx context.Context, items []domain.UpdateItem, ctoken string) (string, error) {
	var out cartWriteResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(updateCartRequest{Items: items, CToken: ctoken}).
		SetResult(&out).
		Put("/api/cart/items")
	if err != nil {
		return "", fmt.Errorf("update cart items: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return "", domain.ErrUnauthorized
	}
	if resp.IsError() {
		return "", fmt.Errorf("update cart items: unexpected status %d", resp.StatusCode())
	}
	return out.CToken, nil
}

// RemoveCartItem 立即移除单行
func (c *CartClient) RemoveCartItem(ctx context.Context, itemID, color, ctoken string) (string, error) {
	var out cartWriteResponse
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("item_id", itemID).
		SetResult(&out)
	if color != "" {
		req.SetQueryParam("color", color)
	}
	if ctoken != "" {
		req.SetQueryParam("ctoken", ctoken)
	}

	resp, err := req.Delete("/api/cart/items")
	if err != nil {
		return "", fmt.Errorf("remove cart item: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return "", domain.ErrUnauthorized
	}
	if resp.IsError() {
		return "", fmt.Errorf("remove cart item: unexpected status %d", resp.StatusCode())
	}
	return out.CToken, nil
}
