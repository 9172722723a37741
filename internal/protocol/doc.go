/*
Package protocol defines the messages exchanged between the controller and the
agent running inside a document context.

# Message Shapes

Two envelopes cross the boundary, each tagged with a type discriminator so they
cannot be confused with unrelated cross-context traffic:

  - agentic:event   context -> controller, unsolicited notification
  - agentic:command controller -> context, instruction

Envelopes travel as encoded bytes inside a Message. A Message may also carry a
transferred reply Port, which the agent answers directly for query-type
commands (assertText) without going through the broadcast event stream.

# Transport Discipline

Receivers decode with DecodeEvent / DecodeCommand. Anything malformed or
missing the discriminator yields ErrTransport and must be dropped without being
surfaced.

# Usage Example

	port := protocol.NewPort()
	data, _ := protocol.EncodeCommand(protocol.NewCommand(protocol.CommandAssertText, map[string]any{
		"selector": "#status",
		"expected": "Welcome",
	}))
	target.PostMessage(protocol.Message{Data: data, Port: port})

	reply, err := port.Await(ctx)
*/
package protocol
