// Package journal holds the in-memory event and alert logs.
//
// Both logs are bounded rings read most-recent-first. Nothing is persisted
// across restarts.
package journal
