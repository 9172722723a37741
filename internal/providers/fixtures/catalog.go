package fixtures

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// EmbedScheme marks a location inside the embedded page set
const EmbedScheme = "embed://"

//go:embed pages/*.html
var pages embed.FS

// catalogFile is the on-disk TOML layout
//
//	[[fixture]]
//	key = "checkout"
//	location = "fixtures/checkout.html"
type catalogFile struct {
	Fixtures []Entry `toml:"fixture"`
}

// Catalog maps fixture keys to locations
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCatalog returns a catalog holding the built-in fixtures
func NewCatalog() *Catalog {
	c := &Catalog{entries: make(map[string]Entry)}
	for _, e := range builtins() {
		c.entries[e.Key] = e
	}
	return c
}

func builtins() []Entry {
	return []Entry{
		{Key: KeyLogin, Location: EmbedScheme + "login.html", Description: "Sign-in form with a password field"},
		{Key: KeySearch, Location: EmbedScheme + "search.html", Description: "Search box with client-side results"},
		{Key: KeyForm, Location: EmbedScheme + "form.html", Description: "Contact form with mixed controls"},
	}
}

// LoadCatalog reads a TOML catalog on top of the built-ins. An empty path
// yields the built-ins only.
func LoadCatalog(path string) (*Catalog, error) {
	c := NewCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture catalog: %w", err)
	}
	if err := c.Merge(data); err != nil {
		return nil, fmt.Errorf("fixture catalog %s: %w", path, err)
	}
	return c, nil
}

// Merge adds or overrides entries from TOML data
func (c *Catalog) Merge(data []byte) error {
	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("invalid TOML: %w", err)
	}

	for i, e := range file.Fixtures {
		e.Key = strings.TrimSpace(e.Key)
		e.Location = strings.TrimSpace(e.Location)
		if e.Key == "" || e.Location == "" {
			return fmt.Errorf("fixture %d: key and location are required", i)
		}
		file.Fixtures[i] = e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range file.Fixtures {
		c.entries[e.Key] = e
	}
	return nil
}

// Lookup returns the entry for key
func (c *Catalog) Lookup(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// List returns all entries sorted by key
func (c *Catalog) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
