package tabs

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/protocol"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/providers/browser/agent"
)

var (
	// ErrNotFound is returned for unknown context ids
	ErrNotFound = errors.New("context not found")
	// ErrSuperseded is returned when a newer load was applied first
	ErrSuperseded = errors.New("load superseded by a newer request")
	// ErrNotLoaded is returned when a context has no running document
	ErrNotLoaded = errors.New("context has no loaded document")
)

// Tab is a read-only copy of one context
type Tab struct {
	ID         string    `json:"id"`
	FixtureKey string    `json:"fixtureKey"`
	Title      string    `json:"title"`
	Content    string    `json:"renderedContent,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LoadedAt   time.Time `json:"loadedAt,omitempty"`
	Loads      int       `json:"loads"`
}

// Snapshot is the read model of the context set
type Snapshot struct {
	Tabs     []Tab  `json:"tabs"`
	ActiveID string `json:"activeId,omitempty"`
}

// Frame is a running document for one context generation
type Frame interface {
	protocol.Target
	Snapshot(ctx context.Context) (string, error)
	Close()
}

// Launcher starts a frame rendering instrumented markup. The frame posts its
// events to parent and calls onLoad once booted.
type Launcher func(contextID, markup string, parent protocol.Target, onLoad func()) (Frame, error)

// AgentLauncher launches agent frames
func AgentLauncher(cfg agent.Config, logger *zap.Logger) Launcher {
	return func(contextID, markup string, parent protocol.Target, onLoad func()) (Frame, error) {
		return agent.Start(cfg, contextID, markup, parent, onLoad, logger)
	}
}
