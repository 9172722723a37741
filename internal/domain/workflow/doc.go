// Package workflow runs ordered agent scripts against one context.
//
// A run targets the context that is active when it starts and keeps that
// target even if focus moves. Steps run strictly in order:
//
//	navigate    load a fixture, then wait for readiness (bounded; a timeout
//	            counts as completion)
//	fill        send a fill command, then the settle delay
//	click       send a click command, then the settle delay
//	assertText  ask over a reply port (bounded; a timeout is a failure) and
//	            log a workflow:assert record either way
//
// Failed assertions never stop a run. A run is aborted only when it is
// cancelled or its context is closed. At most one run may be in flight per
// context; a second one is rejected with ErrRunInProgress.
package workflow
