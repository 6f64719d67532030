package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal 按方法、路由与状态码统计请求总数。
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration 按方法与路由统计请求耗时。
	HTTPRequestDuration *prometheus.HistogramVec

	// LoginFailuresTotal 登录失败总数（凭证错误、账号停用等）。
	LoginFailuresTotal prometheus.Counter

	// LoginThrottledTotal 被限流拒绝的登录请求总数。
	LoginThrottledTotal prometheus.Counter

	// RemindersSentTotal 已发送的任务到期提醒总数。
	RemindersSentTotal prometheus.Counter

	// ReminderErrorsTotal 提醒发送失败总数。
	ReminderErrorsTotal prometheus.Counter
)

var initOnce sync.Once

// InitMetrics 注册全部 Prometheus 指标。
//
// 可以安全地重复调用（仅首次生效），测试中也会使用。
func InitMetrics() {
	initOnce.Do(func() {
		HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskhub_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"})

		HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskhub_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		LoginFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskhub_login_failures_total",
			Help: "Total number of failed login attempts.",
		})

		LoginThrottledTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskhub_login_throttled_total",
			Help: "Total number of login attempts rejected by the rate limiter.",
		})

		RemindersSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskhub_reminders_sent_total",
			Help: "Total number of due-date reminder emails sent.",
		})

		ReminderErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskhub_reminder_errors_total",
			Help: "Total number of reminder delivery failures.",
		})

		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			LoginFailuresTotal,
			LoginThrottledTotal,
			RemindersSentTotal,
			ReminderErrorsTotal,
		)
	})
}
