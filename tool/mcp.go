package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/agentrun/config"
	"github.com/hupe1980/agentrun/llm"
)

const mcpProtocolVersion = "2024-11-05"

// MCPToolset proxies the tools of one stdio MCP (Model Context Protocol)
// server. Every exposed tool is namespaced under the server name, so two
// servers can safely expose tools with the same bare name.
type MCPToolset struct {
	name string
	cfg  config.MCPServerConfig

	mu     sync.Mutex
	client *client.Client
	decls  []llm.Tool
}

// NewMCPToolset creates a toolset for a named stdio server. The connection
// is established in Connect.
func NewMCPToolset(name string, cfg config.MCPServerConfig) *MCPToolset {
	return &MCPToolset{name: name, cfg: cfg}
}

// Connect spawns the server subprocess, performs the MCP handshake and
// caches the tool declarations.
func (t *MCPToolset) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return nil
	}

	mcpClient, err := client.NewStdioMCPClient(t.cfg.Command, convertEnv(t.cfg.Env), t.cfg.Args...)
	if err != nil {
		return fmt.Errorf("create mcp client %s: %w", t.name, err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("start mcp client %s: %w", t.name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpProtocolVersion
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "agentrun",
		Version: "0.1.0",
	}
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("initialize mcp server %s: %w", t.name, err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("list tools of mcp server %s: %w", t.name, err)
	}

	var decls []llm.Tool
	for _, mcpTool := range listResp.Tools {
		decls = append(decls, llm.Tool{
			ServerName:  t.name,
			Name:        mcpTool.Name,
			Description: mcpTool.Description,
			Parameters:  convertSchema(mcpTool.InputSchema),
		})
	}

	t.client = mcpClient
	t.decls = decls
	return nil
}

// Cleanup terminates the server subprocess.
func (t *MCPToolset) Cleanup(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	t.decls = nil
	return err
}

// Tools returns the cached declarations.
func (t *MCPToolset) Tools(ctx context.Context) ([]llm.Tool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil, fmt.Errorf("mcp server %s not connected", t.name)
	}
	return t.decls, nil
}

// Call forwards one tool call to the server and flattens the text content of
// the response.
func (t *MCPToolset) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	t.mu.Lock()
	mcpClient := t.client
	t.mu.Unlock()
	if mcpClient == nil {
		return "", fmt.Errorf("mcp server %s not connected", t.name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("mcp call %s: %w", name, err)
	}

	var sb strings.Builder
	for _, content := range resp.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			sb.WriteString(textContent.Text)
		}
	}
	if resp.IsError {
		return "", NewToolError(name, sb.String(), "EXECUTION_ERROR")
	}
	return sb.String(), nil
}

func convertEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// convertSchema converts an MCP tool schema to a plain map via a JSON round
// trip.
func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}
