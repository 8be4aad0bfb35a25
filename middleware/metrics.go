package middleware

import (
	"context"
	"time"

	awspkg "github.com/MaximeEsteves/backend-lesmidena/pkg/aws"

	"github.com/gin-gonic/gin"
)

// Metrics records request count, latency and errors in CloudWatch. Metrics are
// sent off the request path.
func Metrics(client *awspkg.MetricsClient, service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !client.IsEnabled() {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		dur := time.Since(start)

		dims := map[string]string{
			"Service": service,
			"Method":  c.Request.Method,
			"Path":    c.FullPath(),
		}
		failed := c.Writer.Status() >= 400
		go func() {
			mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.RecordCount(mctx, awspkg.MetricHTTPRequests, dims)
			_ = client.RecordLatency(mctx, awspkg.MetricHTTPLatency, dur, dims)
			if failed {
				_ = client.RecordCount(mctx, awspkg.MetricHTTPErrors, dims)
			}
		}()
	}
}
