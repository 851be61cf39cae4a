package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/deshkart/storefront/internal/cart/application"
	"github.com/deshkart/storefront/internal/cart/domain"
	"github.com/deshkart/storefront/pkg/response"
)

// SessionHeader 会话标识请求头，缺失时由服务端生成并回写
const SessionHeader = "X-Cart-Session"

// CartHandler 购物车 HTTP 处理器
type CartHandler struct {
	manager *application.StoreManager
}

// NewCartHandler 创建购物车处理器
func NewCartHandler(manager *application.StoreManager) *CartHandler {
	return &CartHandler{manager: manager}
}

// RegisterRoutes 注册路由
func (h *CartHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/cart")
	{
		api.GET("", h.GetCart)
		api.POST("/items", h.AddItem)
		api.PUT("/items/quantity", h.UpdateQuantity)
		api.DELETE("/items", h.RemoveItem)
		api.DELETE("", h.ClearCart)
		api.DELETE("/session", h.EndSession)
	}
}

// session 解析会话标识并返回对应的存储
func (h *CartHandler) session(c *gin.Context) (*application.CartStore, bool) {
	sessionID := c.GetHeader(SessionHeader)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	c.Header(SessionHeader, sessionID)

	store, err := h.manager.Get(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err.Error(), "CART_LOAD_FAILED")
		return nil, false
	}
	return store, true
}

// GetCart 返回响应式视图
func (h *CartHandler) GetCart(c *gin.Context) {
	store, ok := h.session(c)
	if !ok {
		return
	}
	response.Success(c, store.View())
}

// AddItemRequest 添加商品请求
type AddItemRequest struct {
	ItemID            string   `json:"item_id" binding:"required"`
	Color             string   `json:"color"`
	Quantity          int      `json:"quantity" binding:"required"`
	UnitPrice         float64  `json:"unit_price"`
	PreorderUnitPrice *float64 `json:"preorder_unit_price"`
	IsPreOrder        bool     `json:"is_pre_order"`
	WeightGrams       float64  `json:"weight_grams"`
	LowStockThreshold int      `json:"low_stock_threshold"`
	Name              string   `json:"name"`
	Slug              string   `json:"slug"`
	ImageURL          string   `json:"image_url"`
	Category          string   `json:"category"`
}

// AddItem 添加或合并商品
func (h *CartHandler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
		return
	}

	store, ok := h.session(c)
	if !ok {
		return
	}

	line := domain.CartLine{
		ItemID:            req.ItemID,
		Color:             req.Color,
		Quantity:          req.Quantity,
		UnitPrice:         decimal.NewFromFloat(req.UnitPrice),
		IsPreOrder:        req.IsPreOrder,
		WeightGrams:       req.WeightGrams,
		LowStockThreshold: req.LowStockThreshold,
		Name:              req.Name,
		Slug:              req.Slug,
		ImageURL:          req.ImageURL,
		Category:          req.Category,
	}
	if req.PreorderUnitPrice != nil {
		p := decimal.NewFromFloat(*req.PreorderUnitPrice)
		line.PreorderUnitPrice = &p
	}

	if err := store.AddOrIncrementLine(c.Request.Context(), line); err != nil {
		writeCartError(c, err)
		return
	}
	response.Success(c, store.View())
}

// QuantityRequest 数量编辑请求
type QuantityRequest struct {
	ItemID     string `json:"item_id" binding:"required"`
	Color      string `json:"color"`
	IsPreOrder bool   `json:"is_pre_order"`
	Quantity   int    `json:"quantity" binding:"required"`
}

// UpdateQuantity 入队数量编辑，乐观生效
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	var req QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
		return
	}

	store, ok := h.session(c)
	if !ok {
		return
	}

	key := domain.LineKey{ItemID: req.ItemID, Color: req.Color, IsPreOrder: req.IsPreOrder}
	if err := store.EnqueueQuantityChange(c.Request.Context(), key, req.Quantity); err != nil {
		writeCartError(c, err)
		return
	}
	response.Success(c, store.View())
}

// RemoveItemRequest 移除商品请求
type RemoveItemRequest struct {
	ItemID     string `json:"item_id" binding:"required"`
	Color      string `json:"color"`
	IsPreOrder bool   `json:"is_pre_order"`
}

// RemoveItem 立即移除行
func (h *CartHandler) RemoveItem(c *gin.Context) {
	var req RemoveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
		return
	}

	store, ok := h.session(c)
	if !ok {
		return
	}

	key := domain.LineKey{ItemID: req.ItemID, Color: req.Color, IsPreOrder: req.IsPreOrder}
	if err := store.RemoveLine(c.Request.Context(), key); err != nil {
		writeCartError(c, err)
		return
	}
	response.Success(c, store.View())
}

// ClearCart 清空购物车并销毁会话存储
func (h *CartHandler) ClearCart(c *gin.Context) {
	store, ok := h.session(c)
	if !ok {
		return
	}
	if err := store.Clear(c.Request.Context()); err != nil {
		response.Error(c, err.Error(), "CART_CLEAR_FAILED")
		return
	}
	view := store.View()
	h.manager.Evict(store.SessionID())
	response.Success(c, view)
}

// EndSession 登出时销毁会话存储，取消待触发的批量写计时器
func (h *CartHandler) EndSession(c *gin.Context) {
	sessionID := c.GetHeader(SessionHeader)
	if sessionID != "" {
		h.manager.Evict(sessionID)
	}
	response.Success(c, gin.H{"ended": true})
}

// writeCartError 把领域错误映射到 HTTP 状态
func writeCartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrQuantityOutOfRange),
		errors.Is(err, domain.ErrEmptyItemID),
		errors.Is(err, domain.ErrNegativePrice),
		errors.Is(err, domain.ErrNegativeWeight):
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "VALIDATION_FAILED")
	case errors.Is(err, domain.ErrLineNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "LINE_NOT_FOUND")
	default:
		response.ErrorWithStatus(c, http.StatusBadGateway, err.Error(), "REMOTE_WRITE_FAILED")
	}
}
