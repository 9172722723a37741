// Package main is the entry point for the agentic browser sandbox server.
//
// The server hosts isolated document contexts, drives them through an
// injected agent and watches their traffic for security-relevant patterns.
//
// Architecture:
//
//	HTTP/WebSocket API → Context Manager → Agent Frames (goja + DOM)
//	                   → Workflow Engine ↗        ↓ events
//	                                     Event Hub → Journal + Security Monitor
//
// The server provides:
//   - REST API for contexts, commands, workflows and runs
//   - WebSocket feed of events and alerts
//   - Prometheus metrics
//   - Rate limiting and CORS
//
// Configuration:
//   - Environment variables (12-factor), see internal/infrastructure/config
//   - Optional .env file in the working directory
//
// Usage:
//
//	PORT=8000 LOG_DEV=true ./server
//	FIXTURE_CATALOG=fixtures.toml WORKFLOW_DIR=./workflows ./server
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
