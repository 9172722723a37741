package workflow

import (
	"sort"
	"sync"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/providers/fixtures"
)

// SampleName is the built-in reference workflow
const SampleName = "sample"

// Sample signs in on the login fixture, then searches
func Sample() *Workflow {
	return &Workflow{
		Name:        SampleName,
		Description: "Sign in as alice, then run a search",
		Steps: []Step{
			Navigate(fixtures.KeyLogin),
			Fill(map[string]string{"#username": "alice", "#password": "secret123"}),
			Click("#login-btn"),
			AssertText("#status", "Welcome, alice!"),
			Navigate(fixtures.KeySearch),
			Fill(map[string]string{"#q": "agent safety"}),
			Click("#go"),
			AssertText("#results", "Result A"),
		},
	}
}

// Library is the set of named workflows
type Library struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow
}

// NewLibrary returns a library holding the sample workflow
func NewLibrary() *Library {
	l := &Library{workflows: make(map[string]*Workflow)}
	l.workflows[SampleName] = Sample()
	return l
}

// Register adds or replaces a workflow
func (l *Library) Register(w *Workflow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.workflows[w.Name] = w
	return nil
}

// Get returns a workflow by name
func (l *Library) Get(name string) (*Workflow, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	w, ok := l.workflows[name]
	return w, ok
}

// List returns every workflow sorted by name
func (l *Library) List() []*Workflow {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Workflow, 0, len(l.workflows))
	for _, w := range l.workflows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
