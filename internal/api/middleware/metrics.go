package middleware

import (
	"strconv"
	"time"

	"taskhub/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics 记录每个请求的 Prometheus 指标。
//
// path 标签使用路由模板（如 /tasks/:id）而不是原始路径，避免高基数。
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
