/*
Package monitoring provides Prometheus metrics for the browser backend.

# Overview

Every Metrics value owns a private registry, so tests and embedded servers
can create as many collectors as they like without duplicate registration.
All recording methods are safe on a nil *Metrics.

# Metrics

- HTTP requests (count, latency, response size) by route template
- Open contexts and fixture loads by outcome
- Events by name, dropped messages by reason, alerts by kind
- Workflow runs by final state, step durations, assertion results
- WebSocket connections and messages
- Uptime plus the Go and process collectors

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "navigate")
	// ... run the step ...
	timer.Stop()
*/
package monitoring
