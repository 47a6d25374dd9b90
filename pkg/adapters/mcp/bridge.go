// Package mcp adapts an MCP stdio subprocess to the ports.Bridge contract:
// batched, positionally correlated tool round trips over the child process's
// standard streams, with unsolicited notifications buffered away from the
// correlated reads.
package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/aretw0/loom/pkg/ports"
)

// Bridge implements ports.Bridge over an MCP stdio client.
type Bridge struct {
	client *client.Client

	mu            sync.Mutex
	notifications []mcp.JSONRPCNotification
}

// Dial spawns the subprocess, performs the MCP handshake, and installs the
// notification buffer.
func Dial(ctx context.Context, command string, env []string, args ...string) (*Bridge, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("spawning bridge subprocess: %w", err)
	}

	b := &Bridge{client: c}
	c.OnNotification(func(n mcp.JSONRPCNotification) {
		b.mu.Lock()
		b.notifications = append(b.notifications, n)
		b.mu.Unlock()
	})

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "loom", Version: "0.4.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("bridge handshake: %w", err)
	}
	return b, nil
}

// Dialer returns a ports.BridgeDialer for the tool action.
func Dialer(command string, env []string, args ...string) ports.BridgeDialer {
	return func(ctx context.Context) (ports.Bridge, error) {
		return Dial(ctx, command, env, args...)
	}
}

// SendAndAwait sends the batch sequentially and returns a same-length,
// positionally correlated batch of responses. The timeout bounds the whole
// batch.
func (b *Bridge) SendAndAwait(ctx context.Context, requests []ports.BridgeRequest, timeout time.Duration) ([]ports.BridgeResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	responses := make([]ports.BridgeResponse, len(requests))
	for i, req := range requests {
		callReq := mcp.CallToolRequest{}
		callReq.Params.Name = req.Tool
		callReq.Params.Arguments = req.Args

		result, err := b.client.CallTool(callCtx, callReq)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", req.Tool, err)
		}
		responses[i] = toResponse(result)
	}
	return responses, nil
}

// DrainNotifications discards pending unsolicited messages.
func (b *Bridge) DrainNotifications(_ context.Context) error {
	b.mu.Lock()
	b.notifications = nil
	b.mu.Unlock()
	return nil
}

// Close terminates the subprocess. Safe to call once per dial; the tool
// action registers it as an instance stop hook.
func (b *Bridge) Close() error {
	return b.client.Close()
}

func toResponse(result *mcp.CallToolResult) ports.BridgeResponse {
	var texts []any
	for _, content := range result.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	resp := ports.BridgeResponse{Result: map[string]any{"content": texts}}
	if result.IsError {
		resp.Err = fmt.Sprint(texts...)
		resp.Result = nil
	}
	return resp
}
