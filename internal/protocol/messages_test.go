package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
		want    string
	}{
		{
			name: "valid event",
			data: `{"type":"agentic:event","event":"ready"}`,
			want: EventReady,
		},
		{
			name:    "foreign discriminator",
			data:    `{"type":"analytics","event":"ready"}`,
			wantErr: ErrDiscriminator,
		},
		{
			name:    "missing discriminator",
			data:    `{"event":"ready"}`,
			wantErr: ErrDiscriminator,
		},
		{
			name:    "command is not an event",
			data:    `{"type":"agentic:command","command":"ping"}`,
			wantErr: ErrDiscriminator,
		},
		{
			name:    "empty event name",
			data:    `{"type":"agentic:event"}`,
			wantErr: ErrMalformed,
		},
		{
			name:    "not json",
			data:    `hello`,
			wantErr: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tt.data))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.True(t, errors.Is(err, ErrTransport))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Event)
		})
	}
}

func TestCommandEnvelope(t *testing.T) {
	data, err := EncodeCommand(NewCommand(CommandFill, map[string]any{
		"fields": map[string]any{"#username": "alice", "#age": 42},
	}))
	require.NoError(t, err)

	cmd, err := DecodeCommand(data)
	require.NoError(t, err)
	assert.Equal(t, TypeCommand, cmd.Type)
	assert.Equal(t, CommandFill, cmd.Command)

	fields := StringMap(cmd.Args, "fields")
	assert.Equal(t, "alice", fields["#username"])
	assert.Equal(t, "42", fields["#age"])

	_, err = DecodeCommand([]byte(`{"type":"agentic:event","event":"click"}`))
	assert.ErrorIs(t, err, ErrTransport)
}

func TestEncodeEventDefaultsType(t *testing.T) {
	data, err := EncodeEvent(Event{Event: EventClicked, Payload: map[string]any{"selector": "#go"}})
	require.NoError(t, err)

	ev, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, "#go", String(ev.Payload, "selector"))
}

func TestPortReply(t *testing.T) {
	port := NewPort()
	assert.True(t, port.Reply(Reply{OK: true}))
	assert.False(t, port.Reply(Reply{OK: false}), "second reply must be ignored")

	reply, err := port.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, reply.OK)
}

func TestPortAwaitTimeout(t *testing.T) {
	port := NewPort()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := port.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPortClose(t *testing.T) {
	port := NewPort()
	port.Close()
	assert.False(t, port.Post([]byte(`{"ok":true}`)))

	_, err := port.Await(context.Background())
	assert.ErrorIs(t, err, ErrPortClosed)
}
