package protocol

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// Envelope discriminators
const (
	TypeEvent   = "agentic:event"
	TypeCommand = "agentic:command"
)

// Reserved event names
const (
	EventReady           = "ready"
	EventClick           = "click"
	EventFormSubmit      = "form_submit"
	EventCommandReceived = "command_received"
	EventAutofilled      = "autofilled"
	EventClicked         = "clicked"
	EventAssertResult    = "assert_result"
	EventError           = "error"
)

// Reserved command names
const (
	CommandPing       = "ping"
	CommandFill       = "fill"
	CommandClick      = "click"
	CommandAssertText = "assertText"
)

var (
	// ErrTransport marks a message that is malformed or not part of this protocol.
	ErrTransport = errors.New("transport: not an agentic message")
	// ErrDiscriminator is returned when the type field does not match.
	ErrDiscriminator = fmt.Errorf("%w: missing or foreign type discriminator", ErrTransport)
	// ErrMalformed is returned when the envelope cannot be decoded or has no name.
	ErrMalformed = fmt.Errorf("%w: malformed envelope", ErrTransport)
)

// Event is an unsolicited notification from a document context
type Event struct {
	Type    string         `json:"type"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Command is an instruction sent to a document context
type Command struct {
	Type    string         `json:"type"`
	Command string         `json:"command"`
	Args    map[string]any `json:"args,omitempty"`
}

// Reply answers a command that was sent with a reply port
type Reply struct {
	OK bool `json:"ok"`
}

// NewEvent builds a correctly tagged event envelope
func NewEvent(name string, payload map[string]any) Event {
	return Event{Type: TypeEvent, Event: name, Payload: payload}
}

// NewCommand builds a correctly tagged command envelope
func NewCommand(name string, args map[string]any) Command {
	return Command{Type: TypeCommand, Command: name, Args: args}
}

// EncodeEvent serializes an event envelope
func EncodeEvent(e Event) ([]byte, error) {
	if e.Type == "" {
		e.Type = TypeEvent
	}
	return sonic.Marshal(e)
}

// DecodeEvent parses an event envelope, rejecting foreign traffic
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := sonic.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.Type != TypeEvent {
		return Event{}, ErrDiscriminator
	}
	if e.Event == "" {
		return Event{}, ErrMalformed
	}
	return e, nil
}

// EncodeCommand serializes a command envelope
func EncodeCommand(c Command) ([]byte, error) {
	if c.Type == "" {
		c.Type = TypeCommand
	}
	return sonic.Marshal(c)
}

// DecodeCommand parses a command envelope, rejecting foreign traffic
func DecodeCommand(data []byte) (Command, error) {
	var c Command
	if err := sonic.Unmarshal(data, &c); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if c.Type != TypeCommand {
		return Command{}, ErrDiscriminator
	}
	if c.Command == "" {
		return Command{}, ErrMalformed
	}
	return c, nil
}

// EncodeReply serializes a reply
func EncodeReply(r Reply) ([]byte, error) {
	return sonic.Marshal(r)
}

// DecodeReply parses a reply posted on a port
func DecodeReply(data []byte) (Reply, error) {
	var r Reply
	if err := sonic.Unmarshal(data, &r); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return r, nil
}

// String reads a string argument
func String(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return s
}

// StringMap reads an object argument whose values are stringified
func StringMap(args map[string]any, key string) map[string]string {
	raw, ok := args[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
