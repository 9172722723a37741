package sandbox

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// XPathPrefix marks a selector that is evaluated as XPath instead of CSS
const XPathPrefix = "xpath:"

// Listener receives dispatched events
type Listener func(ev *Event)

type listener struct {
	typ     string
	capture bool
	fn      Listener
}

// Document is a parsed, mutable page
type Document struct {
	doc       *goquery.Document
	listeners map[*html.Node][]listener

	// OnListenerError is called when a listener panics
	OnListenerError func(err error)
}

// Parse builds a Document from markup
func Parse(markup string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{
		doc:       doc,
		listeners: make(map[*html.Node][]listener),
	}, nil
}

// Root returns the document node
func (d *Document) Root() *html.Node {
	return d.doc.Nodes[0]
}

// Title returns the trimmed text of the first <title>
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// HTML renders the current document state
func (d *Document) HTML() (string, error) {
	return d.doc.Html()
}

// Query returns the first element matching selector, or nil
func (d *Document) Query(selector string) *html.Node {
	return QueryFrom(d.Root(), selector)
}

// QueryAll returns every element matching selector
func (d *Document) QueryAll(selector string) []*html.Node {
	return QueryAllFrom(d.Root(), selector)
}

// QueryFrom finds the first match below scope
func QueryFrom(scope *html.Node, selector string) *html.Node {
	if nodes := QueryAllFrom(scope, selector); len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

// QueryAllFrom finds every match below scope. Invalid selectors match nothing.
func QueryAllFrom(scope *html.Node, selector string) []*html.Node {
	selector = strings.TrimSpace(selector)
	if selector == "" || scope == nil {
		return nil
	}
	if expr, ok := strings.CutPrefix(selector, XPathPrefix); ok {
		nodes, err := htmlquery.QueryAll(scope, strings.TrimSpace(expr))
		if err != nil {
			return nil
		}
		return elementsOnly(nodes)
	}
	return goquery.NewDocumentFromNode(scope).Find(selector).Nodes
}

// Scripts returns every <script> element in document order
func (d *Document) Scripts() []*html.Node {
	return d.doc.Find("script").Nodes
}

// AddEventListener registers fn on node for events of type typ
func (d *Document) AddEventListener(n *html.Node, typ string, capture bool, fn Listener) {
	if n == nil || fn == nil {
		return
	}
	d.listeners[n] = append(d.listeners[n], listener{typ: typ, capture: capture, fn: fn})
}

// Dispatch fires an event at target through capture, target and bubble phases
func (d *Document) Dispatch(target *html.Node, typ string) *Event {
	ev := &Event{Type: typ, Target: target}
	if target == nil {
		return ev
	}

	// path[0] is the target, path[len-1] the document node
	var path []*html.Node
	for n := target; n != nil; n = n.Parent {
		path = append(path, n)
	}

	for i := len(path) - 1; i > 0; i-- {
		if d.fire(path[i], ev, func(l listener) bool { return l.capture }) {
			return ev
		}
	}
	if d.fire(target, ev, func(listener) bool { return true }) {
		return ev
	}
	for i := 1; i < len(path); i++ {
		if d.fire(path[i], ev, func(l listener) bool { return !l.capture }) {
			return ev
		}
	}
	return ev
}

// fire runs matching listeners on n and reports whether propagation stopped
func (d *Document) fire(n *html.Node, ev *Event, match func(listener) bool) bool {
	// copy so listeners added during dispatch do not run in this pass
	registered := append([]listener(nil), d.listeners[n]...)
	for _, l := range registered {
		if l.typ != ev.Type || !match(l) {
			continue
		}
		ev.CurrentTarget = n
		d.invoke(l.fn, ev)
	}
	return ev.propagationStopped
}

func (d *Document) invoke(fn Listener, ev *Event) {
	defer func() {
		if r := recover(); r != nil && d.OnListenerError != nil {
			d.OnListenerError(fmt.Errorf("listener for %q panicked: %v", ev.Type, r))
		}
	}()
	fn(ev)
}

// Click performs native activation: a click event, then implicit submission
// when the element is a submit button inside a form.
func (d *Document) Click(n *html.Node) *Event {
	ev := d.Dispatch(n, "click")
	if ev.DefaultPrevented() || !IsSubmitter(n) {
		return ev
	}
	if form := ClosestForm(n); form != nil {
		d.Submit(form)
	}
	return ev
}

// Submit fires a submit event at form
func (d *Document) Submit(form *html.Node) *Event {
	return d.Dispatch(form, "submit")
}

// Fill sets a control's value and notifies input and change listeners
func (d *Document) Fill(n *html.Node, value string) {
	SetValue(n, value)
	d.Dispatch(n, "input")
	d.Dispatch(n, "change")
}

// FormValues collects the field name to value mapping of a form
func FormValues(form *html.Node) map[string]string {
	values := make(map[string]string)
	for _, n := range QueryAllFrom(form, "input, textarea, select") {
		key := fieldKey(n)
		if key == "" {
			continue
		}
		if TagName(n) == "input" {
			switch strings.ToLower(attr(n, "type")) {
			case "submit", "button", "reset", "image", "file":
				continue
			case "checkbox", "radio":
				if _, checked := Attr(n, "checked"); !checked {
					continue
				}
			}
		}
		values[key] = Value(n)
	}
	return values
}

func fieldKey(n *html.Node) string {
	if name := attr(n, "name"); name != "" {
		return name
	}
	if id := attr(n, "id"); id != "" {
		return "#" + id
	}
	return ""
}

// ClosestForm returns the nearest enclosing <form>, including n itself
func ClosestForm(n *html.Node) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.Data == "form" {
			return n
		}
	}
	return nil
}

// IsSubmitter reports whether activating n submits its form
func IsSubmitter(n *html.Node) bool {
	switch TagName(n) {
	case "button":
		t := strings.ToLower(attr(n, "type"))
		return t == "" || t == "submit"
	case "input":
		t := strings.ToLower(attr(n, "type"))
		return t == "submit" || t == "image"
	}
	return false
}

// TagName returns the lowercase tag of an element node
func TagName(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return n.Data
}

// ID returns the id attribute
func ID(n *html.Node) string {
	return attr(n, "id")
}

// Attr returns an attribute value and whether it is present
func Attr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func attr(n *html.Node, name string) string {
	v, _ := Attr(n, name)
	return v
}

// SetAttr sets or replaces an attribute
func SetAttr(n *html.Node, name, value string) {
	if n == nil {
		return
	}
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr deletes an attribute
func RemoveAttr(n *html.Node, name string) {
	if n == nil {
		return
	}
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace != "" || a.Key != name {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

// TextContent concatenates all descendant text
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(TextContent(c))
	}
	return sb.String()
}

// SetTextContent replaces all children with a single text node
func SetTextContent(n *html.Node, text string) {
	if n == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

// Value returns the current value of a form control
func Value(n *html.Node) string {
	switch TagName(n) {
	case "textarea":
		return TextContent(n)
	case "select":
		options := QueryAllFrom(n, "option")
		for _, opt := range options {
			if _, selected := Attr(opt, "selected"); selected {
				return optionValue(opt)
			}
		}
		if len(options) > 0 {
			return optionValue(options[0])
		}
		return ""
	default:
		return attr(n, "value")
	}
}

// SetValue updates the value of a form control
func SetValue(n *html.Node, value string) {
	switch TagName(n) {
	case "textarea":
		SetTextContent(n, value)
	case "select":
		for _, opt := range QueryAllFrom(n, "option") {
			if optionValue(opt) == value {
				SetAttr(opt, "selected", "")
			} else {
				RemoveAttr(opt, "selected")
			}
		}
	default:
		SetAttr(n, "value", value)
	}
}

func optionValue(opt *html.Node) string {
	if v, ok := Attr(opt, "value"); ok {
		return v
	}
	return strings.TrimSpace(TextContent(opt))
}

func elementsOnly(nodes []*html.Node) []*html.Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
	}
	return out
}

// Event is a dispatched DOM event
type Event struct {
	Type          string
	Target        *html.Node
	CurrentTarget *html.Node

	defaultPrevented   bool
	propagationStopped bool
}

// PreventDefault cancels the event's default action
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// StopPropagation stops dispatch after the current node
func (e *Event) StopPropagation() { e.propagationStopped = true }

// DefaultPrevented reports whether PreventDefault was called
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }
