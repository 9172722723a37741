package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Step kinds
const (
	StepNavigate   = "navigate"
	StepFill       = "fill"
	StepClick      = "click"
	StepAssertText = "assertText"
)

// RecordAssert names the log record appended for every assertion
const RecordAssert = "workflow:assert"

var (
	// ErrInvalidWorkflow is returned for workflows that fail validation
	ErrInvalidWorkflow = errors.New("invalid workflow")
	// ErrNoActiveContext is returned when a run starts with no context open
	ErrNoActiveContext = errors.New("no active context")
	// ErrRunInProgress is returned when the target context is already busy
	ErrRunInProgress = errors.New("a workflow is already running against this context")
	// ErrContextClosed aborts a run whose context disappeared
	ErrContextClosed = errors.New("target context was closed")
	// ErrRunNotFound is returned for unknown run ids
	ErrRunNotFound = errors.New("run not found")
	// ErrUnknownWorkflow is returned for names missing from the library
	ErrUnknownWorkflow = errors.New("unknown workflow")
)

// Step is one action. Exactly the fields of its Kind are set.
type Step struct {
	Kind     string            `json:"kind"`
	Fixture  string            `json:"fixture,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Selector string            `json:"selector,omitempty"`
	Expected string            `json:"expected,omitempty"`
}

// Navigate builds a navigate step
func Navigate(fixture string) Step { return Step{Kind: StepNavigate, Fixture: fixture} }

// Fill builds a fill step
func Fill(fields map[string]string) Step { return Step{Kind: StepFill, Fields: fields} }

// Click builds a click step
func Click(selector string) Step { return Step{Kind: StepClick, Selector: selector} }

// AssertText builds an assertText step
func AssertText(selector, expected string) Step {
	return Step{Kind: StepAssertText, Selector: selector, Expected: expected}
}

// String describes the step for logs
func (s Step) String() string {
	switch s.Kind {
	case StepNavigate:
		return fmt.Sprintf("navigate(%s)", s.Fixture)
	case StepFill:
		keys := make([]string, 0, len(s.Fields))
		for k := range s.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("fill(%s)", strings.Join(keys, ", "))
	case StepClick:
		return fmt.Sprintf("click(%s)", s.Selector)
	case StepAssertText:
		return fmt.Sprintf("assertText(%s, %q)", s.Selector, s.Expected)
	}
	return s.Kind
}

// Validate checks the step has what its kind needs
func (s Step) Validate() error {
	switch s.Kind {
	case StepNavigate:
		if s.Fixture == "" {
			return errors.New("navigate requires a fixture key")
		}
	case StepFill:
		if len(s.Fields) == 0 {
			return errors.New("fill requires at least one field")
		}
	case StepClick:
		if s.Selector == "" {
			return errors.New("click requires a selector")
		}
	case StepAssertText:
		if s.Selector == "" {
			return errors.New("assertText requires a selector")
		}
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
	return nil
}

// Workflow is an ordered script of steps
type Workflow struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Steps       []Step `json:"steps"`
}

// Validate checks every step
func (w *Workflow) Validate() error {
	if len(w.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidWorkflow)
	}
	for i, s := range w.Steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%w: step %d: %v", ErrInvalidWorkflow, i+1, err)
		}
	}
	return nil
}
