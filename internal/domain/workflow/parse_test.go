package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginYAML = `
name: login
description: sign in
steps:
  - navigate: login
  - fill:
      "#username": alice
      "#password": 12345
  - click: "#login-btn"
  - assertText:
      selector: "#status"
      expected: Welcome
`

func TestParseYAML(t *testing.T) {
	w, err := Parse([]byte(loginYAML))
	require.NoError(t, err)

	assert.Equal(t, "login", w.Name)
	assert.Equal(t, []Step{
		Navigate("login"),
		Fill(map[string]string{"#username": "alice", "#password": "12345"}),
		Click("#login-btn"),
		AssertText("#status", "Welcome"),
	}, w.Steps)
}

func TestParseJSON(t *testing.T) {
	w, err := Parse([]byte(`{"name":"j","steps":[{"navigate":"search"},{"click":"#go"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []Step{Navigate("search"), Click("#go")}, w.Steps)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "no steps", doc: "name: x\nsteps: []\n"},
		{name: "unknown kind", doc: "steps:\n  - hover: '#a'\n"},
		{name: "two kinds in one step", doc: "steps:\n  - navigate: login\n    click: '#a'\n"},
		{name: "navigate without key", doc: "steps:\n  - navigate: {a: b}\n"},
		{name: "fill with scalar", doc: "steps:\n  - fill: oops\n"},
		{name: "assert without selector", doc: "steps:\n  - assertText: {expected: x}\n"},
		{name: "not yaml", doc: "steps: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidWorkflow)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "login.yaml"), []byte(loginYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "search.json"),
		[]byte(`{"steps":[{"navigate":"search"}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	found, err := LoadDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "login", found[0].Name)
	assert.Equal(t, "nested/search", found[1].Name)
}

func TestLoadDirReportsBadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yml"), []byte(loginYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"), []byte("steps: []\n"), 0o644))

	found, err := LoadDir(context.Background(), dir)
	assert.ErrorIs(t, err, ErrInvalidWorkflow)
	assert.Contains(t, err.Error(), "bad.yml")
	require.Len(t, found, 1)
	assert.Equal(t, "login", found[0].Name)
}

func TestLibrary(t *testing.T) {
	lib := NewLibrary()

	sample, ok := lib.Get(SampleName)
	require.True(t, ok)
	assert.Len(t, sample.Steps, 8)

	require.NoError(t, lib.Register(&Workflow{Name: "a", Steps: []Step{Click("#x")}}))
	assert.Error(t, lib.Register(&Workflow{Name: "b"}))

	names := []string{}
	for _, w := range lib.List() {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"a", SampleName}, names)
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "navigate(login)", Navigate("login").String())
	assert.Equal(t, "fill(#a, #b)", Fill(map[string]string{"#b": "", "#a": ""}).String())
	assert.Equal(t, `assertText(#s, "x")`, AssertText("#s", "x").String())
}
