package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/threatgate/threatgate/internal/tracing"
)

// TracingMiddleware creates a new span for each request and adds common tags
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(
			c.Request.Context(),
			c.Request.Method+" "+c.FullPath(),
			c.Request.Header,
		)
		defer span.Finish()

		tracing.TagComponentRest(span)

		// Add source or IP if present in URL params
		if source := c.Param("source"); source != "" {
			tracing.TagSource(span, source)
		}
		if ip := c.Param("ip"); ip != "" {
			tracing.TagIP(span, ip)
		}

		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if c.Writer.Status() >= 400 {
			tracing.TraceErr(span, errors.Errorf("http status %d", c.Writer.Status()))
		}
	}
}
