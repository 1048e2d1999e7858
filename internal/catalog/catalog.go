// Package catalog wraps the tool server's discovered tool list into a
// stable, queryable schema. The catalog is read-only after discovery
// and is safely shared across sessions.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/fleetmind/fleetmind-agent/internal/mcp"
)

// maxParamDescription bounds per-parameter description length in the
// rendered schema so a wordy tool server can't blow up the prompt.
const maxParamDescription = 100

// Catalog holds the discovered tool definitions and renders them into
// the compact text block the oracle reads.
type Catalog struct {
	client *mcp.Client
	logger *slog.Logger

	mu       sync.RWMutex
	tools    []mcp.ToolDefinition
	byName   map[string]mcp.ToolDefinition
	rendered string
}

// New creates a catalog backed by the given MCP client. Call Discover
// before using the query methods.
func New(client *mcp.Client, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		client: client,
		logger: logger.With("component", "catalog"),
		byName: map[string]mcp.ToolDefinition{},
	}
}

// Discover performs the MCP handshake (if needed) and fetches the tool
// list. Fails if the remote handshake fails; the catalog stays empty in
// that case.
func (c *Catalog) Discover(ctx context.Context) error {
	if !c.client.Connected() {
		if err := c.client.Initialize(ctx); err != nil {
			return fmt.Errorf("connect to tool server: %w", err)
		}
	}

	tools, err := c.client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("discover tools: %w", err)
	}

	byName := make(map[string]mcp.ToolDefinition, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}

	c.mu.Lock()
	c.tools = tools
	c.byName = byName
	c.rendered = renderSchema(tools)
	c.mu.Unlock()

	c.logger.Info("tool catalog ready", "tools", len(tools))
	return nil
}

// Describe renders every tool into a compact block: name, description,
// and the parameter list with a required-marker and truncated
// per-parameter descriptions.
func (c *Catalog) Describe() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rendered
}

// Has reports whether a tool with the given name was discovered.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byName[name]
	return ok
}

// Get returns the definition for name, if discovered.
func (c *Catalog) Get(name string) (mcp.ToolDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byName[name]
	return t, ok
}

// Len returns the number of discovered tools.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}

// Names returns the discovered tool names in schema order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tools))
	for _, t := range c.tools {
		names = append(names, t.Name)
	}
	return names
}

// Connected reports whether the underlying client finished its handshake.
func (c *Catalog) Connected() bool {
	return c.client.Connected()
}

// Invoke calls a tool and parses its text result as JSON. Tool servers
// return structured data as JSON text content; anything that doesn't
// parse is returned as the raw string.
func (c *Catalog) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	text, err := c.client.CallTool(ctx, name, args)
	if err != nil {
		return nil, err
	}

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return text, nil
	}
	return parsed, nil
}

// renderSchema builds the oracle-facing schema text. Parameters are
// sorted by name for a stable rendering.
func renderSchema(tools []mcp.ToolDefinition) string {
	blocks := make([]string, 0, len(tools))
	for _, tool := range tools {
		var b strings.Builder
		fmt.Fprintf(&b, "**%s**: %s\nParameters:\n", tool.Name, tool.Description)

		params := renderParams(tool.InputSchema)
		if len(params) == 0 {
			b.WriteString("  (no parameters)")
		} else {
			b.WriteString(strings.Join(params, "\n"))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// renderParams flattens a JSON-schema inputSchema into one line per
// parameter: "  - name* (type): description". The "*" marks required
// parameters.
func renderParams(schema map[string]any) []string {
	properties, _ := schema["properties"].(map[string]any)
	if len(properties) == 0 {
		return nil
	}

	required := map[string]bool{}
	if reqList, ok := schema["required"].([]any); ok {
		for _, r := range reqList {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		prop, _ := properties[name].(map[string]any)

		paramType := "any"
		if t, ok := prop["type"].(string); ok && t != "" {
			paramType = t
		}

		desc, _ := prop["description"].(string)
		if len(desc) > maxParamDescription {
			desc = desc[:maxParamDescription]
		}

		marker := ""
		if required[name] {
			marker = "*"
		}

		lines = append(lines, fmt.Sprintf("  - %s%s (%s): %s", name, marker, paramType, desc))
	}
	return lines
}
