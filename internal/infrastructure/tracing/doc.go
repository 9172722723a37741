/*
Package tracing tags HTTP requests with a request id and logs them.

Every request gets an X-Request-ID (taken from the client when present,
otherwise a fresh ULID-based id). The id is stored in the request context
and echoed in the response. Finished spans are handed to a buffered
collector that logs them with zap, so logging never blocks a handler.

# Usage

	tracer := tracing.New(logger.Component("http"), 1000)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	// in a handler
	requestID := tracing.RequestID(c.Request.Context())
*/
package tracing
