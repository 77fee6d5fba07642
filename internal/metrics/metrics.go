package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlib_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptlib_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// APIRequestSize API 请求体大小（字节）
	APIRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptlib_api_request_size_bytes",
			Help:    "API 请求体大小分布",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path"},
	)
)

// 保存流程指标
var (
	// SaveAttemptsTotal 保存尝试次数，按模式与最终状态统计
	SaveAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlib_save_attempts_total",
			Help: "保存尝试总数",
		},
		[]string{"mode", "state"},
	)

	// SaveFailuresTotal 保存失败次数，按错误类型统计
	SaveFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlib_save_failures_total",
			Help: "保存失败总数",
		},
		[]string{"mode", "kind"},
	)

	// SaveWarningsTotal 附属步骤告警次数
	SaveWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlib_save_warnings_total",
			Help: "保存附属步骤告警总数",
		},
		[]string{"step"},
	)

	// SaveStepDuration 各步骤耗时（秒）
	SaveStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptlib_save_step_duration_seconds",
			Help:    "保存各步骤耗时分布",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"step"},
	)

	// SaveRetriesExhaustedTotal 重试次数耗尽
	SaveRetriesExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promptlib_save_retries_exhausted_total",
			Help: "保存重试次数耗尽总数",
		},
	)

	// SaveRateLimitedTotal 被限流拒绝的保存请求
	SaveRateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promptlib_save_rate_limited_total",
			Help: "被限流拒绝的保存请求总数",
		},
	)

	// SaveSessionsActive 活跃的保存会话数
	SaveSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "promptlib_save_sessions_active",
			Help: "活跃的保存会话数",
		},
	)
)

// 实时通知指标
var (
	// WebSocketConnectionsGauge WebSocket 在线连接数
	WebSocketConnectionsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "promptlib_ws_connections",
			Help: "WebSocket 在线连接数",
		},
	)

	// NotificationsTotal 推送的保存通知
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlib_notifications_total",
			Help: "保存通知推送总数",
		},
		[]string{"level", "channel"},
	)
)

// 缓存指标
var (
	// CacheInvalidationsTotal 查询缓存失效次数
	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlib_cache_invalidations_total",
			Help: "查询缓存失效总数",
		},
		[]string{"result"},
	)
)
