package fixtures

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/infrastructure/resilience"
)

// Config defines loader behavior
type Config struct {
	Timeout   time.Duration // Per-fetch bound for HTTP locations
	UserAgent string
}

// DefaultConfig returns the default loader configuration
func DefaultConfig() Config {
	return Config{
		Timeout:   5 * time.Second,
		UserAgent: "AgentBrowser-Fixtures/1.0",
	}
}

// Loader fetches fixtures through a catalog
type Loader struct {
	catalog *Catalog
	config  Config
	http    *resty.Client
	breaker *resilience.Breaker
	logger  *zap.Logger

	// Observe is called with the outcome of every fetch
	Observe func(key, outcome string, duration time.Duration)
}

// NewLoader creates a loader over catalog
func NewLoader(catalog *Catalog, config Config, logger *zap.Logger) *Loader {
	if catalog == nil {
		catalog = NewCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultConfig().UserAgent
	}

	client := resty.New().
		SetTimeout(config.Timeout).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "text/html, text/plain;q=0.9")

	breaker := resilience.New("fixtures-http", resilience.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsFailure: hostFailure,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Fixture host circuit changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Loader{
		catalog: catalog,
		config:  config,
		http:    client,
		breaker: breaker,
		logger:  logger,
	}
}

// Catalog returns the loader's catalog
func (l *Loader) Catalog() *Catalog {
	return l.catalog
}

// Fetch resolves key and returns its UTF-8 markup
func (l *Loader) Fetch(ctx context.Context, key string) (string, error) {
	start := time.Now()

	entry, ok := l.catalog.Lookup(key)
	if !ok {
		l.observe(key, "unknown", start)
		return "", &FetchError{Key: key, Err: ErrUnknownFixture}
	}

	data, err := l.read(ctx, entry.Location)
	if err == nil {
		var markup string
		if markup, err = decode(data); err == nil {
			l.observe(key, "ok", start)
			l.logger.Debug("Fixture fetched",
				zap.String("key", key),
				zap.String("location", entry.Location),
				zap.Int("bytes", len(markup)),
			)
			return markup, nil
		}
	}

	l.observe(key, "error", start)
	l.logger.Warn("Fixture fetch failed",
		zap.String("key", key),
		zap.String("location", entry.Location),
		zap.Error(err),
	)
	return "", &FetchError{Key: key, Location: entry.Location, Err: err}
}

func (l *Loader) observe(key, outcome string, start time.Time) {
	if l.Observe != nil {
		l.Observe(key, outcome, time.Since(start))
	}
}

func (l *Loader) read(ctx context.Context, location string) ([]byte, error) {
	switch {
	case strings.HasPrefix(location, EmbedScheme):
		return pages.ReadFile("pages/" + strings.TrimPrefix(location, EmbedScheme))
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return l.readHTTP(ctx, location)
	default:
		return readFile(location)
	}
}

func (l *Loader) readHTTP(ctx context.Context, url string) ([]byte, error) {
	return resilience.Do(ctx, l.breaker, func(ctx context.Context) ([]byte, error) {
		resp, err := l.http.R().SetContext(ctx).Get(url)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, &statusError{code: resp.StatusCode(), status: resp.Status()}
		}
		return resp.Body(), nil
	})
}

// statusError is an HTTP error response from a fixture host
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return "server responded " + e.status
}

// hostFailure reports whether err says the fixture host is unhealthy. A
// missing page is the catalog's problem, not the host's.
func hostFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	return true
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, MaxFixtureSize+1))
}

// decode validates data as text and converts it to UTF-8
func decode(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty content", ErrNotMarkup)
	}
	if len(data) > MaxFixtureSize {
		return "", ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	if !isText(mtype) {
		return "", fmt.Errorf("%w: detected %s", ErrNotMarkup, mtype.String())
	}

	label := detectCharset(data, mtype.String())
	if label == "utf-8" {
		return string(data), nil
	}

	reader, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return string(data), nil
	}
	converted, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("charset conversion from %s: %w", label, err)
	}
	return string(converted), nil
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") || m.Is("text/html") {
			return true
		}
	}
	return false
}

// detectCharset prefers a declared encoding (BOM, meta tag) and falls back
// to statistical detection
func detectCharset(data []byte, contentType string) string {
	if _, name, certain := charset.DetermineEncoding(data, contentType); certain {
		return normalizeCharset(name)
	}

	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return normalizeCharset(result.Charset)
}

func normalizeCharset(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "utf8" {
		return "utf-8"
	}
	return name
}

// IsFetchError reports whether err is a fixture fetch failure
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
