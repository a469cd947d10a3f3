package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// Gateway manages stdio connections to external MCP servers and exposes
// their tools through the registry interface.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*mcpConnection

	callTimeout time.Duration
}

type mcpConnection struct {
	name   string
	client *client.Client
	tools  []mcp.Tool
}

// NewGateway creates an empty gateway.
func NewGateway() *Gateway {
	return &Gateway{
		connections: make(map[string]*mcpConnection),
		callTimeout: 60 * time.Second,
	}
}

// Connect launches an MCP server over stdio, initializes the session, and
// lists its tools.
func (g *Gateway) Connect(ctx context.Context, name, command string, args ...string) error {
	mcpClient, err := client.NewStdioMCPClient(command, nil, args...)
	if err != nil {
		return fmt.Errorf("create MCP client for %s: %w", name, err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("start MCP client for %s: %w", name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = "2024-11-05"
	initReq.Params.Capabilities = mcp.ClientCapabilities{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "shopflow", Version: "1.0.0"}

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("initialize MCP client for %s: %w", name, err)
	}

	listCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	listed, err := mcpClient.ListTools(listCtx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("list tools for %s: %w", name, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.connections[name] = &mcpConnection{name: name, client: mcpClient, tools: listed.Tools}
	return nil
}

// Tools returns every remote tool name across all connections.
func (g *Gateway) Tools() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var names []string
	for _, conn := range g.connections {
		for _, tool := range conn.tools {
			names = append(names, tool.Name)
		}
	}
	return names
}

// Call invokes a remote tool on whichever server advertises it and flattens
// the text content of the result.
func (g *Gateway) Call(ctx context.Context, name string, args map[string]string) (string, error) {
	g.mu.RLock()
	var target *mcpConnection
	for _, conn := range g.connections {
		for _, tool := range conn.tools {
			if tool.Name == name {
				target = conn
				break
			}
		}
		if target != nil {
			break
		}
	}
	g.mu.RUnlock()

	if target == nil {
		return "", fmt.Errorf("MCP tool not found: %s", name)
	}

	callArgs := make(map[string]any, len(args))
	for k, v := range args {
		callArgs[k] = v
	}

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	result, err := target.client.CallTool(callCtx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: callArgs},
	})
	if err != nil {
		return "", fmt.Errorf("call MCP tool %s: %w", name, err)
	}

	var parts []string
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// Close closes all connections.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, conn := range g.connections {
		conn.client.Close()
	}
	g.connections = make(map[string]*mcpConnection)
	return nil
}

// RegisterRemote adds every gateway tool to the registry as a callable Tool.
func RegisterRemote(registry *Registry, gateway *Gateway) {
	for _, name := range gateway.Tools() {
		toolName := name
		registry.Register(FuncTool{
			ToolName: toolName,
			Desc:     "Remote MCP tool.",
			Fn: func(ctx context.Context, args map[string]string) (string, error) {
				return gateway.Call(ctx, toolName, args)
			},
		})
	}
}
