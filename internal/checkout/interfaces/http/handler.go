package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/deshkart/storefront/internal/checkout/application"
	"github.com/deshkart/storefront/internal/checkout/domain"
	"github.com/deshkart/storefront/pkg/response"
)

// SessionHeader 会话标识请求头，与购物车接口共用同一个键
const SessionHeader = "X-Cart-Session"

// CheckoutHandler 结算 HTTP 处理器
type CheckoutHandler struct {
	checkout *application.CheckoutService
}

// NewCheckoutHandler 创建结算处理器
func NewCheckoutHandler(checkout *application.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// RegisterRoutes 注册路由
func (h *CheckoutHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/checkout")
	{
		api.POST("/quote", h.Quote)
		api.POST("/coupon", h.ApplyCoupon)
		api.DELETE("/coupon", h.RemoveCoupon)
	}
}

func sessionID(c *gin.Context) string {
	id := c.GetHeader(SessionHeader)
	if id == "" {
		id = uuid.New().String()
	}
	c.Header(SessionHeader, id)
	return id
}

// QuoteRequest 结算报价请求
type QuoteRequest struct {
	PaymentMethod string `json:"payment_method"`
	CityKey       string `json:"city_key"`
}

// Quote 计算结算金额拆分与最终合计
func (h *CheckoutHandler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
		return
	}

	pb, totals, err := h.checkout.Quote(c.Request.Context(), sessionID(c), domain.PaymentMethod(req.PaymentMethod), req.CityKey)
	if err != nil {
		response.Error(c, err.Error(), "QUOTE_FAILED")
		return
	}

	response.Success(c, gin.H{
		"payment_breakdown": pb,
		"totals":            totals,
	})
}

// CouponRequest 优惠码请求
type CouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// ApplyCoupon 申请优惠码
func (h *CheckoutHandler) ApplyCoupon(c *gin.Context) {
	var req CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
		return
	}

	coupon, err := h.checkout.ApplyCoupon(c.Request.Context(), sessionID(c), req.Code)
	if err != nil {
		if errors.Is(err, domain.ErrCouponRejected) {
			response.ErrorWithStatus(c, http.StatusUnprocessableEntity, err.Error(), "COUPON_REJECTED")
			return
		}
		response.Error(c, err.Error(), "COUPON_VALIDATION_FAILED")
		return
	}
	response.Success(c, coupon)
}

// RemoveCoupon 撤销优惠码
func (h *CheckoutHandler) RemoveCoupon(c *gin.Context) {
	h.checkout.RemoveCoupon(sessionID(c))
	response.Success(c, gin.H{"removed": true})
}
