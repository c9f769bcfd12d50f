// Package gateway implements component D (spec.md §4.D): the MCP tool
// gateway the agent talks to over stdio. It publishes a static tool
// catalog matching the action table in spec.md §6, turns each tool call
// into a correlated Command submitted to the embedded broker, and
// formats the CommandResponse back into MCP content.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/Lemon9247/agentfox/internal/command"
)

// Broker is the subset of internal/ipc.Broker the gateway depends on.
type Broker interface {
	SendCommand(ctx context.Context, cmd command.Command) (command.Response, error)
	WaitForConnection(ctx context.Context) error
	Status() (connected, everConnected bool)
}

// attachWait is how long a tool call waits for a relay to attach before
// giving up, per spec.md §4.D ("wait up to ≈5s for one to attach").
const attachWait = 5 * time.Second

// formatter converts a successful CommandResponse's raw JSON result into
// MCP content. Most actions pass through as formatted JSON text;
// screenshot returns an image content block instead.
type formatter func(result json.RawMessage) (*mcp.CallToolResult, error)

// toolSpec is one entry in the static catalog: an MCP tool definition,
// the Action it maps to, and its result formatter.
type toolSpec struct {
	tool      mcp.Tool
	action    command.Action
	formatter formatter
}

// Gateway wires the MCP tool catalog to a Broker.
type Gateway struct {
	broker Broker
	logger *zap.SugaredLogger
	srv    *server.MCPServer
}

// New builds a Gateway and registers every tool in the catalog against
// srv name/version.
func New(broker Broker, name, version string, logger *zap.SugaredLogger) *Gateway {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	g := &Gateway{
		broker: broker,
		logger: logger,
		srv:    server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
	}
	for _, spec := range g.catalog() {
		spec := spec
		g.srv.AddTool(spec.tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return g.callTool(ctx, spec, req)
		})
	}
	return g
}

// ServeStdio blocks, serving MCP requests over stdin/stdout until ctx is
// canceled or the stdio transport errs out.
func (g *Gateway) ServeStdio(ctx context.Context) error {
	return server.ServeStdio(g.srv, server.WithStdioContextFunc(func(context.Context) context.Context { return ctx }))
}

// callTool implements §4.D's per-invocation algorithm: wait for an
// attached relay, assign a correlation ID, submit, format the result.
func (g *Gateway) callTool(ctx context.Context, spec toolSpec, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	connected, everConnected := g.broker.Status()
	if !connected {
		waitCtx, cancel := context.WithTimeout(ctx, attachWait)
		err := g.broker.WaitForConnection(waitCtx)
		cancel()
		if err != nil {
			if everConnected {
				return mcp.NewToolResultError(command.ErrDisconnected.Error()), nil
			}
			return mcp.NewToolResultError(command.ErrNeverConnected.Error()), nil
		}
	}

	params, err := json.Marshal(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("agentfox: encode tool arguments: %v", err)), nil
	}

	cmd := command.Command{ID: uuid.NewString(), Action: spec.action, Params: params}
	g.logger.Debugw("dispatching command", "action", cmd.Action, "id", cmd.ID)
	start := time.Now()

	resp, err := g.broker.SendCommand(ctx, cmd)
	if err != nil {
		g.logger.Debugw("command failed", "action", cmd.Action, "id", cmd.ID, "latency", time.Since(start), "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	g.logger.Debugw("command completed", "action", cmd.Action, "id", cmd.ID, "latency", time.Since(start), "success", resp.Success)
	if !resp.Success {
		return mcp.NewToolResultError(resp.Error), nil
	}
	return spec.formatter(resp.Result)
}

func textFormatter(result json.RawMessage) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(string(result)), nil
}

func imageFormatter(result json.RawMessage) (*mcp.CallToolResult, error) {
	var shot command.ScreenshotResult
	if err := json.Unmarshal(result, &shot); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("agentfox: decode screenshot result: %v", err)), nil
	}
	return mcp.NewToolResultImage("screenshot", shot.Data, shot.MimeType), nil
}
