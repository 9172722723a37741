package fixtures

import (
	"context"
	"errors"
	"fmt"
)

// Built-in fixture keys
const (
	KeyLogin  = "login"
	KeySearch = "search"
	KeyForm   = "form"
)

// MaxFixtureSize bounds fetched markup
const MaxFixtureSize = 5 * 1024 * 1024

var (
	// ErrUnknownFixture is returned for keys missing from the catalog
	ErrUnknownFixture = errors.New("unknown fixture")
	// ErrNotMarkup is returned when fetched content is not text
	ErrNotMarkup = errors.New("fixture is not text markup")
	// ErrTooLarge is returned when fetched content exceeds MaxFixtureSize
	ErrTooLarge = fmt.Errorf("fixture exceeds maximum size of %d bytes", MaxFixtureSize)
)

// Source resolves a fixture key to markup
type Source interface {
	Fetch(ctx context.Context, key string) (string, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, key string) (string, error)

// Fetch implements Source
func (f SourceFunc) Fetch(ctx context.Context, key string) (string, error) {
	return f(ctx, key)
}

// Entry maps a fixture key to its location
type Entry struct {
	Key         string `toml:"key" json:"key"`
	Location    string `toml:"location" json:"location"`
	Description string `toml:"description" json:"description,omitempty"`
}

// FetchError reports a failed fixture fetch
type FetchError struct {
	Key      string
	Location string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("fetch fixture %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("fetch fixture %q from %s: %v", e.Key, e.Location, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
