package sandbox

import (
	"errors"
	"time"
)

var (
	ErrTimeout  = errors.New("script execution timeout exceeded")
	ErrNoScript = errors.New("empty script")
)

// Config defines sandbox configuration
type Config struct {
	Timeout       time.Duration // Per-entry execution timeout
	MaxCallStack  int           // Maximum JS call stack depth
	EnableConsole bool          // Allow console.log/warn/error
}

// DefaultConfig returns the configuration used for fixture documents
func DefaultConfig() Config {
	return Config{
		Timeout:       2 * time.Second,
		MaxCallStack:  1024,
		EnableConsole: true,
	}
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, info, warn, error
	Message string    // Log message
	Time    time.Time // Timestamp
}

// Result holds execution result
type Result struct {
	Value    interface{}   // Return value
	Console  []LogEntry    // Console output produced by this execution
	Duration time.Duration // Execution time
}

// Host is the environment surrounding a document: the parent window that
// receives postMessage traffic and the event loop that runs timers.
type Host interface {
	PostToParent(data []byte)
	Schedule(delay time.Duration, task func())
	Console(entry LogEntry)
}
