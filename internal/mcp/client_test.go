package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

// mockTransport is a test double for the Transport interface.
type mockTransport struct {
	mu        sync.Mutex
	responses map[string]*Response // method -> canned response
	sent      []Request            // captured requests
	notifs    []Notification       // captured notifications
	closed    bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		responses: make(map[string]*Response),
	}
}

func (m *mockTransport) addResponse(method string, result any) {
	data, _ := json.Marshal(result)
	m.responses[method] = &Response{
		JSONRPC: jsonrpcVersion,
		Result:  json.RawMessage(data),
	}
}

func (m *mockTransport) addError(method string, code int, msg string) {
	m.responses[method] = &Response{
		JSONRPC: jsonrpcVersion,
		Error:   &RPCError{Code: code, Message: msg},
	}
}

func (m *mockTransport) Send(_ context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, *req)
	resp, ok := m.responses[req.Method]
	if !ok {
		return nil, fmt.Errorf("unexpected method: %s", req.Method)
	}
	// Copy response and set matching ID.
	out := *resp
	out.ID = req.ID
	return &out, nil
}

func (m *mockTransport) Notify(_ context.Context, notif *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifs = append(m.notifs, *notif)
	return nil
}

func (m *mockTransport) Close() error {
	m.closed = true
	return nil
}

func TestClient_Initialize(t *testing.T) {
	mt := newMockTransport()
	mt.addResponse("initialize", initializeResult{
		ProtocolVersion: "2024-11-05",
		ServerInfo:      serverInfo{Name: "fleetmind-mcp", Version: "1.0.0"},
	})

	client := NewClient(mt, nil)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if len(mt.sent) != 1 {
		t.Fatalf("sent %d requests, want 1", len(mt.sent))
	}
	if mt.sent[0].Method != "initialize" {
		t.Errorf("method = %q, want %q", mt.sent[0].Method, "initialize")
	}

	if len(mt.notifs) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(mt.notifs))
	}
	if mt.notifs[0].Method != "notifications/initialized" {
		t.Errorf("notification method = %q, want %q", mt.notifs[0].Method, "notifications/initialized")
	}

	if !client.Connected() {
		t.Error("Connected() = false after successful handshake")
	}
	name, version := client.ServerInfo()
	if name != "fleetmind-mcp" || version != "1.0.0" {
		t.Errorf("ServerInfo() = %q, %q", name, version)
	}
}

func TestClient_ListTools(t *testing.T) {
	mt := newMockTransport()
	mt.addResponse("initialize", initializeResult{
		ProtocolVersion: "2024-11-05",
		ServerInfo:      serverInfo{Name: "fleetmind-mcp", Version: "1.0.0"},
	})
	mt.addResponse("tools/list", toolsListResult{
		Tools: []ToolDefinition{
			{
				Name:        "geocode_address",
				Description: "Convert address to GPS coordinates",
				InputSchema: map[string]any{"type": "object"},
			},
			{
				Name:        "create_order",
				Description: "Create delivery order",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"customer_name": map[string]any{"type": "string"},
					},
				},
			},
		},
	})

	client := NewClient(mt, nil)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	if len(tools) != 2 {
		t.Fatalf("got %d tools, want 2", len(tools))
	}
	if tools[0].Name != "geocode_address" {
		t.Errorf("tools[0].Name = %q, want %q", tools[0].Name, "geocode_address")
	}

	// Second call should return cached results without another request.
	if _, err := client.ListTools(context.Background()); err != nil {
		t.Fatalf("ListTools (cached): %v", err)
	}
	if len(mt.sent) != 2 {
		t.Errorf("sent %d requests, want 2 (init + one tools/list)", len(mt.sent))
	}
}

func TestClient_CallTool_TextResult(t *testing.T) {
	mt := newMockTransport()
	mt.addResponse("initialize", initializeResult{
		ProtocolVersion: "2024-11-05",
		ServerInfo:      serverInfo{Name: "fleetmind-mcp", Version: "1.0.0"},
	})
	mt.addResponse("tools/call", callToolResult{
		Content: []ContentBlock{
			{Type: "text", Text: `{"latitude": 37.4224, "longitude": -122.0842}`},
		},
	})

	client := NewClient(mt, nil)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	result, err := client.CallTool(context.Background(), "geocode_address", map[string]any{
		"address": "1600 Amphitheatre Parkway",
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}

	if result != `{"latitude": 37.4224, "longitude": -122.0842}` {
		t.Errorf("result = %q", result)
	}
}

func TestClient_CallTool_ErrorResult(t *testing.T) {
	mt := newMockTransport()
	mt.addResponse("initialize", initializeResult{
		ProtocolVersion: "2024-11-05",
		ServerInfo:      serverInfo{Name: "fleetmind-mcp", Version: "1.0.0"},
	})
	mt.addResponse("tools/call", callToolResult{
		Content: []ContentBlock{
			{Type: "text", Text: "order not found"},
		},
		IsError: true,
	})

	client := NewClient(mt, nil)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	_, err := client.CallTool(context.Background(), "get_order_details", map[string]any{
		"order_id": "ORD-missing",
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := err.Error(); got != "MCP tool get_order_details returned error: order not found" {
		t.Errorf("error = %q", got)
	}
}

func TestClient_CallTool_RPCError(t *testing.T) {
	mt := newMockTransport()
	mt.addResponse("initialize", initializeResult{
		ProtocolVersion: "2024-11-05",
		ServerInfo:      serverInfo{Name: "fleetmind-mcp", Version: "1.0.0"},
	})
	mt.addError("tools/call", -32601, "Method not found")

	client := NewClient(mt, nil)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if _, err := client.CallTool(context.Background(), "nonexistent", nil); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestClient_Close(t *testing.T) {
	mt := newMockTransport()
	client := NewClient(mt, nil)
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !mt.closed {
		t.Error("transport was not closed")
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name   string
		blocks []ContentBlock
		want   string
	}{
		{
			name:   "single text block",
			blocks: []ContentBlock{{Type: "text", Text: "hello"}},
			want:   "hello",
		},
		{
			name:   "multiple text blocks",
			blocks: []ContentBlock{{Type: "text", Text: "a"}, {Type: "text", Text: "b"}},
			want:   "a\nb",
		},
		{
			name:   "image placeholder",
			blocks: []ContentBlock{{Type: "image"}},
			want:   "[image]",
		},
		{
			name:   "unknown type",
			blocks: []ContentBlock{{Type: "audio"}},
			want:   "[audio]",
		},
		{
			name:   "empty",
			blocks: nil,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractText(tt.blocks)
			if got != tt.want {
				t.Errorf("extractText() = %q, want %q", got, tt.want)
			}
		})
	}
}
