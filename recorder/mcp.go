package recorder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Appsurify/rrweb/kit"
)

// RegisterMCP registers the recording tools on an MCP server:
// rrweb_record_start, rrweb_record_stop, rrweb_take_snapshot,
// rrweb_custom_event, rrweb_stats.
func (m *SessionManager) RegisterMCP(srv *mcp.Server, defaults Options) {
	m.registerStartTool(srv, defaults)
	m.registerStopTool(srv)
	m.registerSnapshotTool(srv)
	m.registerCustomEventTool(srv)
	m.registerStatsTool(srv)
}

type startRequest struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
}

func (m *SessionManager) registerStartTool(srv *mcp.Server, defaults Options) {
	tool := &mcp.Tool{
		Name:        "rrweb_record_start",
		Description: "Start recording a page. Opens the URL and begins emitting the event stream to the configured sinks.",
		InputSchema: kit.InputSchema(map[string]any{
			"url":        map[string]any{"type": "string", "description": "Page URL to record"},
			"session_id": map[string]any{"type": "string", "description": "Optional session id (generated when empty)"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*startRequest)
		sess, err := m.StartURL(ctx, r.URL, r.SessionID, defaults)
		if err != nil {
			return nil, err
		}
		return map[string]string{"status": "recording", "session_id": sess.ID}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[startRequest])
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

func (m *SessionManager) registerStopTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "rrweb_record_stop",
		Description: "Stop a recording session.",
		InputSchema: kit.InputSchema(map[string]any{
			"session_id": map[string]any{"type": "string", "description": "Session id returned by rrweb_record_start"},
		}, []string{"session_id"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*sessionRequest)
		if err := m.Stop(r.SessionID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "stopped", "session_id": r.SessionID}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[sessionRequest])
}

func (m *SessionManager) registerSnapshotTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "rrweb_take_snapshot",
		Description: "Force a fresh full snapshot (Meta + FullSnapshot) in a session's stream.",
		InputSchema: kit.InputSchema(map[string]any{
			"session_id": map[string]any{"type": "string", "description": "Session id"},
		}, []string{"session_id"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*sessionRequest)
		sess, ok := m.Get(r.SessionID)
		if !ok {
			return nil, fmt.Errorf("recorder: unknown session %q", r.SessionID)
		}
		if err := sess.Handle.TakeFullSnapshot(true); err != nil {
			return nil, err
		}
		return map[string]string{"status": "snapshotted", "session_id": r.SessionID}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[sessionRequest])
}

type customEventRequest struct {
	SessionID string          `json:"session_id"`
	Tag       string          `json:"tag"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (m *SessionManager) registerCustomEventTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "rrweb_custom_event",
		Description: "Inject a custom event into a session's stream.",
		InputSchema: kit.InputSchema(map[string]any{
			"session_id": map[string]any{"type": "string", "description": "Session id"},
			"tag":        map[string]any{"type": "string", "description": "Custom event tag"},
			"payload":    map[string]any{"description": "Arbitrary JSON payload"},
		}, []string{"session_id", "tag"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*customEventRequest)
		sess, ok := m.Get(r.SessionID)
		if !ok {
			return nil, fmt.Errorf("recorder: unknown session %q", r.SessionID)
		}
		var payload any
		if len(r.Payload) > 0 {
			if err := json.Unmarshal(r.Payload, &payload); err != nil {
				return nil, fmt.Errorf("recorder: custom event payload: %w", err)
			}
		}
		sess.Handle.AddCustomEvent(r.Tag, payload)
		return map[string]string{"status": "queued", "session_id": r.SessionID}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[customEventRequest])
}

func (m *SessionManager) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "rrweb_stats",
		Description: "List active recording sessions with their event counts.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return m.Stats(), nil
	}

	decode := func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func decodeInto[T any](req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r T
	if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}
