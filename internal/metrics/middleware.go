package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// 探针与抓取端点不计入 API 指标
var skipPaths = map[string]struct{}{
	"/metrics": {},
	"/health":  {},
	"/ready":   {},
}

const unmatchedRoute = "unmatched"

// PrometheusMiddleware 记录 API 请求数、延迟与请求体大小
//
// 路径标签使用路由模板（如 /api/prompts/:id），未匹配路由统一记为 unmatched，
// 避免任意 URL 撑爆标签基数。
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, skip := skipPaths[c.Request.URL.Path]; skip {
			c.Next()
			return
		}

		start := time.Now()
		requestSize := c.Request.ContentLength

		c.Next()

		route := routeLabel(c)
		method := c.Request.Method
		APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		APIRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if requestSize > 0 {
			APIRequestSize.WithLabelValues(method, route).Observe(float64(requestSize))
		}
	}
}

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}
