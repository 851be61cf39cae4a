// Package metrics 提供 Prometheus helper，包含购物车与结算相关业务指标
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deshkart/storefront/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 批量写入计数
	CartFlushesTotal prometheus.Counter
	// 批量写入失败计数
	CartFlushFailuresTotal prometheus.Counter
	// 批量写入耗时
	CartFlushDuration prometheus.Histogram
	// 移除商品计数
	CartRemovalsTotal prometheus.Counter
	// 购物车行数
	CartLinesActive prometheus.Gauge

	// 库存快照刷新计数
	StockRefreshesTotal prometheus.Counter
	// 优惠码校验计数
	CouponValidationsTotal prometheus.Counter
	// 优惠码拒绝计数
	CouponRejectionsTotal prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		CartFlushesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: serviceName,
			Name:      "cart_flushes_total",
			Help:      "Total coalesced cart quantity flushes",
		}),
		CartFlushFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: serviceName,
			Name:      "cart_flush_failures_total",
			Help:      "Total failed cart quantity flushes",
		}),
		CartFlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: serviceName,
			Name:      "cart_flush_duration_seconds",
			Help:      "Cart flush duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		CartRemovalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: serviceName,
			Name:      "cart_removals_total",
			Help:      "Total cart line removals",
		}),
		CartLinesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: serviceName,
			Name:      "cart_lines_active",
			Help:      "Number of lines in the authoritative cart",
		}),
		StockRefreshesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: serviceName,
			Name:      "stock_refreshes_total",
			Help:      "Total stock snapshot refreshes",
		}),
		CouponValidationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: serviceName,
			Name:      "coupon_validations_total",
			Help:      "Total coupon validation requests",
		}),
		CouponRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: serviceName,
			Name:      "coupon_rejections_total",
			Help:      "Total rejected coupon codes",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	metrics := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CartFlushesTotal,
		m.CartFlushFailuresTotal,
		m.CartFlushDuration,
		m.CartRemovalsTotal,
		m.CartLinesActive,
		m.StockRefreshesTotal,
		m.CouponValidationsTotal,
		m.CouponRejectionsTotal,
	}

	for _, metric := range metrics {
		if err := prometheus.DefaultRegisterer.Register(metric); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}

	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error(context.Background(), "Prometheus HTTP server failed", "error", err)
		}
	}()

	return nil
}
