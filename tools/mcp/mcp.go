// Package mcp bridges tools provided by external MCP server
// subprocesses into the agent's tool registry.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/m4xw311/parley/errors"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Client manages the connection to a single MCP server subprocess.
type Client struct {
	Name  string
	cmd   *exec.Cmd
	conn  *mcpsdk.ClientSession
	tools []*ServerTool
}

// NewClient starts the MCP server subprocess, connects, and discovers
// the tools it provides.
func NewClient(name, command string, args []string) (*Client, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "parley", Version: "v1.0.0"}, nil)
	ctx := context.Background()
	conn, err := mcpClient.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		cmd.Process.Kill()
		return nil, errors.Wrapf(err, "failed to connect to MCP server '%s'", name)
	}

	client := &Client{
		Name: name,
		cmd:  cmd,
		conn: conn,
	}

	toolListParams := &mcpsdk.ListToolsParams{}
	for {
		toolList, err := conn.ListTools(ctx, toolListParams)
		if err != nil {
			cmd.Process.Kill()
			return nil, errors.Wrapf(err, "failed to list tools from MCP server '%s'", name)
		}

		for _, t := range toolList.Tools {
			client.tools = append(client.tools, &ServerTool{
				toolName:    t.Name,
				description: t.Description,
				parameters:  schemaToMap(t.InputSchema),
				client:      client,
			})
		}

		if toolList.NextCursor == "" {
			break
		}
		toolListParams.Cursor = toolList.NextCursor
	}

	return client, nil
}

// Tools returns the tools discovered from this server.
func (c *Client) Tools() []*ServerTool {
	return c.tools
}

// Stop terminates the MCP server subprocess.
func (c *Client) Stop() error {
	if c.conn != nil {
		c.conn.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}

// schemaToMap converts the SDK's schema type to the plain JSON-Schema
// map the tool registry exposes.
func schemaToMap(schema any) map[string]interface{} {
	out := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
	if schema == nil {
		return out
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return out
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil || len(m) == 0 {
		return out
	}
	return m
}

// ServerTool is one tool exposed by an MCP server. It satisfies the
// agent's Tool interface.
type ServerTool struct {
	toolName    string
	description string
	parameters  map[string]interface{}
	client      *Client
}

// Name returns the tool's short name. Qualified "<server>:<tool>" names
// are rejected by some providers, so the short name is used as-is.
func (t *ServerTool) Name() string {
	return t.toolName
}

func (t *ServerTool) Description() string {
	return t.description
}

func (t *ServerTool) Parameters() map[string]interface{} {
	return t.parameters
}

// Execute sends the call to the MCP server and concatenates the text
// content of the result.
func (t *ServerTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	result, err := t.client.conn.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.toolName,
		Arguments: args,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to call tool '%s' on server '%s'", t.toolName, t.client.Name)
	}

	op := ""
	for _, c := range result.Content {
		if text, ok := c.(*mcpsdk.TextContent); ok {
			op += text.Text
		} else {
			op += fmt.Sprintf("[unsupported content type %T]", c)
		}
	}
	return op, nil
}
