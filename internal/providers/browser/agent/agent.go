package agent

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/protocol"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/providers/browser/sandbox"
)

type handlerFunc func(args map[string]any, port *protocol.Port) error

// docAgent is the in-document agent. It only runs on its frame's loop.
type docAgent struct {
	frame      *Frame
	doc        *sandbox.Document
	textPrefix int
	handlers   map[string]handlerFunc
}

func newDocAgent(f *Frame, textPrefix int) *docAgent {
	a := &docAgent{
		frame:      f,
		doc:        f.doc,
		textPrefix: textPrefix,
	}
	a.handlers = map[string]handlerFunc{
		protocol.CommandPing:       a.ping,
		protocol.CommandFill:       a.fill,
		protocol.CommandClick:      a.click,
		protocol.CommandAssertText: a.assertText,
	}
	return a
}

// install registers capture-phase observers on the document
func (a *docAgent) install() {
	root := a.doc.Root()
	a.doc.AddEventListener(root, "click", true, a.onClick)
	a.doc.AddEventListener(root, "submit", true, a.onSubmit)
}

func (a *docAgent) emit(name string, payload map[string]any) {
	data, err := protocol.EncodeEvent(protocol.NewEvent(name, payload))
	if err != nil {
		a.frame.logger.Error("Failed to encode event", zap.String("event", name), zap.Error(err))
		return
	}
	a.frame.parent.PostMessage(protocol.Message{Data: data})
}

func (a *docAgent) emitReady() {
	a.emit(protocol.EventReady, map[string]any{
		"title": a.doc.Title(),
	})
}

func (a *docAgent) onClick(ev *sandbox.Event) {
	n := ev.Target
	a.emit(protocol.EventClick, map[string]any{
		"tag":       strings.ToUpper(sandbox.TagName(n)),
		"elementId": sandbox.ID(n),
		"text":      visiblePrefix(sandbox.TextContent(n), a.textPrefix),
	})
}

func (a *docAgent) onSubmit(ev *sandbox.Event) {
	values := sandbox.FormValues(ev.Target)
	payload := make(map[string]any, len(values))
	for k, v := range values {
		payload[k] = v
	}
	a.emit(protocol.EventFormSubmit, payload)
}

// handle executes one controller message
func (a *docAgent) handle(msg protocol.Message) {
	if msg.Port != nil {
		// unanswered ports are closed so the sender never hangs
		defer msg.Port.Close()
	}

	cmd, err := protocol.DecodeCommand(msg.Data)
	if err != nil {
		return
	}
	handler, ok := a.handlers[cmd.Command]
	if !ok {
		return
	}

	a.emit(protocol.EventCommandReceived, map[string]any{"command": cmd.Command})

	if err := a.safely(func() error { return handler(cmd.Args, msg.Port) }); err != nil {
		a.emit(protocol.EventError, map[string]any{
			"what":    cmd.Command,
			"message": err.Error(),
		})
	}
}

func (a *docAgent) safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command panicked: %v", r)
		}
	}()
	return fn()
}

func (a *docAgent) ping(args map[string]any, _ *protocol.Port) error {
	a.emitReady()
	return nil
}

func (a *docAgent) fill(args map[string]any, _ *protocol.Port) error {
	fields := protocol.StringMap(args, "fields")
	if len(fields) == 0 {
		return fmt.Errorf("fill requires a non-empty fields object")
	}

	selectors := make([]string, 0, len(fields))
	for sel := range fields {
		selectors = append(selectors, sel)
	}
	sort.Strings(selectors)

	touched := []string{}
	missing := []string{}
	for _, sel := range selectors {
		n := a.doc.Query(sel)
		if n == nil {
			missing = append(missing, sel)
			continue
		}
		a.doc.Fill(n, fields[sel])
		touched = append(touched, sel)
	}

	payload := map[string]any{"fields": touched}
	if len(missing) > 0 {
		payload["missing"] = missing
	}
	a.emit(protocol.EventAutofilled, payload)
	return nil
}

func (a *docAgent) click(args map[string]any, _ *protocol.Port) error {
	sel := protocol.String(args, "selector")
	n := a.doc.Query(sel)
	if n == nil {
		return fmt.Errorf("element not found: %q", sel)
	}
	a.doc.Click(n)
	a.emit(protocol.EventClicked, map[string]any{"selector": sel})
	return nil
}

func (a *docAgent) assertText(args map[string]any, port *protocol.Port) error {
	sel := protocol.String(args, "selector")
	expected := protocol.String(args, "expected")

	n := a.doc.Query(sel)
	ok := n != nil && strings.Contains(sandbox.TextContent(n), expected)

	a.emit(protocol.EventAssertResult, map[string]any{
		"selector": sel,
		"expected": expected,
		"found":    n != nil,
		"ok":       ok,
	})
	if port != nil {
		port.Reply(protocol.Reply{OK: ok})
	}
	return nil
}

// visiblePrefix collapses whitespace and truncates to max runes
func visiblePrefix(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > max {
		return string(runes[:max])
	}
	return text
}
