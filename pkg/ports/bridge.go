package ports

import (
	"context"
	"time"
)

// BridgeRequest is one correlated request sent to a tool-execution
// subprocess.
type BridgeRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// BridgeResponse is the positionally correlated reply for one request.
// Exactly one of Result/Err is meaningful.
type BridgeResponse struct {
	Result map[string]any `json:"result,omitempty"`
	Err    string         `json:"error,omitempty"`
}

// Bridge is the boundary to a tool-execution subprocess speaking a
// JSON-RPC-like protocol over its standard streams.
//
// SendAndAwait sends the batch and returns a same-length, positionally
// correlated batch of responses within the timeout. DrainNotifications
// discards pending unsolicited messages so they do not corrupt the next
// correlated read. Bridges are acquired once per instance and released
// exactly once via a registered stop hook.
type Bridge interface {
	SendAndAwait(ctx context.Context, requests []BridgeRequest, timeout time.Duration) ([]BridgeResponse, error)
	DrainNotifications(ctx context.Context) error
	Close() error
}

// BridgeDialer opens a bridge on demand. The tool action dials lazily on
// first use and registers Close on the instance's cleanup hooks.
type BridgeDialer func(ctx context.Context) (Bridge, error)
