package http

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/protocol"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/shared/id"
)

// Request size limits (in bytes)
const (
	MaxWorkflowSize = 256 * 1024 // workflow documents
	MaxCommandSize  = 64 * 1024  // manual command bodies
	MaxQueryLimit   = 10000
	DefaultLimit    = 100
)

var (
	errBadRequest = errors.New("bad request")
	errNoReply    = errors.New("document did not reply in time")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// validateTabID rejects ids that cannot name a context
func validateTabID(value string) error {
	if !id.HasPrefix(value, id.TabPrefix) {
		return badRequest("invalid context id %q", value)
	}
	return nil
}

// validateCommand accepts only commands the document agent understands
func validateCommand(name string) error {
	switch name {
	case protocol.CommandPing, protocol.CommandFill, protocol.CommandClick, protocol.CommandAssertText:
		return nil
	}
	return badRequest("unknown command %q", name)
}

// parseLimit reads a ?limit= value
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest("limit must be a non-negative integer")
	}
	if n == 0 || n > MaxQueryLimit {
		n = MaxQueryLimit
	}
	return n, nil
}

// readLimited reads at most max bytes and fails when the body is larger
func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, badRequest("body exceeds %d bytes", max)
	}
	return data, nil
}

func decodeJSON(data []byte, v any) error {
	if len(data) == 0 {
		return badRequest("empty body")
	}
	return sonic.Unmarshal(data, v)
}
