package tracing

import (
	"github.com/gin-gonic/gin"
)

// maxRequestIDLength bounds ids accepted from clients
const maxRequestIDLength = 64

// HTTPMiddleware tags every request with a request id and hands the finished
// span to the tracer
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if incoming := c.GetHeader(Header); incoming != "" && len(incoming) <= maxRequestIDLength {
			ctx = WithRequestID(ctx, incoming)
		}

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, name)
		span.Method = c.Request.Method
		span.Path = c.Request.URL.Path
		span.ClientIP = c.ClientIP()

		c.Request = c.Request.WithContext(ctx)
		c.Header(Header, span.RequestID)

		c.Next()

		for _, err := range c.Errors {
			span.Errors = append(span.Errors, err.Error())
		}
		span.Finish(c.Writer.Status())
		tracer.Submit(span)
	}
}
