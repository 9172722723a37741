// Package agent runs document contexts and the agent injected into them.
//
// A Frame is one isolated context: a single goroutine that owns the parsed
// document and its script runtime, fed by a FIFO task queue. The controller
// reaches it only through PostMessage, and the frame reports back only through
// the parent Target it was started with.
//
// The agent is installed when the frame boots instrumented markup. It captures
// clicks and form submissions, executes the reserved commands (ping, fill,
// click, assertText) and reports everything as agentic:event messages.
// Unknown commands are ignored; failing commands become error events.
//
// Commands posted before earlier ones have settled are queued, never dropped.
package agent
