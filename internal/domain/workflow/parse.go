package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/goccy/go-yaml"
)

// FilePattern selects workflow documents inside a directory
const FilePattern = "**/*.{yaml,yml,json}"

// document is the serialized form. Each step is a single-key mapping from
// its kind to its argument:
//
//	name: login
//	steps:
//	  - navigate: login
//	  - fill: {"#username": alice}
//	  - click: "#login-btn"
//	  - assertText: {selector: "#status", expected: "Welcome"}
type document struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Steps       []map[string]any `yaml:"steps"`
}

// Parse decodes a YAML or JSON workflow document
func Parse(data []byte) (*Workflow, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}

	w := &Workflow{
		Name:        strings.TrimSpace(doc.Name),
		Description: doc.Description,
		Steps:       make([]Step, 0, len(doc.Steps)),
	}
	for i, raw := range doc.Steps {
		step, err := decodeStep(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", ErrInvalidWorkflow, i+1, err)
		}
		w.Steps = append(w.Steps, step)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func decodeStep(raw map[string]any) (Step, error) {
	if len(raw) != 1 {
		return Step{}, fmt.Errorf("expected exactly one step kind, got %d keys", len(raw))
	}

	for kind, arg := range raw {
		switch kind {
		case StepNavigate:
			fixture, ok := arg.(string)
			if !ok {
				return Step{}, fmt.Errorf("navigate expects a fixture key")
			}
			return Navigate(fixture), nil
		case StepFill:
			fields, ok := stringMap(arg)
			if !ok {
				return Step{}, fmt.Errorf("fill expects a selector to value mapping")
			}
			return Fill(fields), nil
		case StepClick:
			selector, ok := arg.(string)
			if !ok {
				return Step{}, fmt.Errorf("click expects a selector")
			}
			return Click(selector), nil
		case StepAssertText:
			args, ok := stringMap(arg)
			if !ok {
				return Step{}, fmt.Errorf("assertText expects selector and expected")
			}
			return AssertText(args["selector"], args["expected"]), nil
		default:
			return Step{}, fmt.Errorf("unknown step kind %q", kind)
		}
	}
	return Step{}, nil
}

func stringMap(v any) (map[string]string, bool) {
	var out map[string]string
	switch m := v.(type) {
	case map[string]any:
		out = make(map[string]string, len(m))
		for k, val := range m {
			out[k] = scalar(val)
		}
	case map[any]any:
		out = make(map[string]string, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = scalar(val)
		}
	default:
		return nil, false
	}
	return out, true
}

func scalar(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// LoadDir parses every workflow document under root. Files without a name
// are named after their path. Results are sorted by name.
func LoadDir(ctx context.Context, root string) ([]*Workflow, error) {
	var (
		mu    sync.Mutex
		found []*Workflow
		errs  []string
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil || d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ok, _ := doublestar.Match(FilePattern, rel); !ok {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			mu.Lock()
			errs = append(errs, fmt.Sprintf("%s: %v", rel, readErr))
			mu.Unlock()
			return nil
		}
		w, parseErr := Parse(data)

		mu.Lock()
		defer mu.Unlock()
		if parseErr != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", rel, parseErr))
			return nil
		}
		if w.Name == "" {
			w.Name = strings.TrimSuffix(rel, filepath.Ext(rel))
		}
		found = append(found, w)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow directory: %w", err)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	if len(errs) > 0 {
		sort.Strings(errs)
		return found, fmt.Errorf("%w: %s", ErrInvalidWorkflow, strings.Join(errs, "; "))
	}
	return found, nil
}
