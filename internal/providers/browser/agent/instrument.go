package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/providers/browser/sandbox"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// MarkerAttr tags the script element that bootstraps the agent
const MarkerAttr = "data-agentic-agent"

// Version is written into the marker so stale instrumentation can be told apart
const Version = "1"

// ErrNotInstrumented is returned when markup lacks the agent marker
var ErrNotInstrumented = errors.New("document is not instrumented")

// Instrument injects the agent marker at the top of the document head.
// Already instrumented markup is returned unchanged.
func Instrument(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse markup: %w", err)
	}

	if doc.Find("script[" + MarkerAttr + "]").Length() > 0 {
		return markup, nil
	}

	marker := fmt.Sprintf(`<script %s="%s"></script>`, MarkerAttr, Version)
	doc.Find("head").First().PrependHtml(marker)

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render instrumented markup: %w", err)
	}
	return out, nil
}

// isMarker reports whether n is the agent bootstrap script
func isMarker(n *html.Node) bool {
	_, ok := sandbox.Attr(n, MarkerAttr)
	return ok
}

// IsInstrumented reports whether doc carries the agent marker
func IsInstrumented(doc *sandbox.Document) bool {
	for _, s := range doc.Scripts() {
		if isMarker(s) {
			return true
		}
	}
	return false
}
