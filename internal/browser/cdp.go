// Package browser drives a live Chromium-family browser over its DevTools
// protocol (CDP) remote-debugging WebSocket, and dispatches agentfox
// commands against it. The CDP client here is grounded on the same
// connect/correlate/call shape a plain HTTP+WebSocket bridge would use.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is a correlated request/response CDP connection to one page
// target. A fresh Client must be reconnected after any error; callers
// needing resilience should wrap it with a Reconnector.
type Client struct {
	debugPort int
	logger    *zap.SugaredLogger

	mu        sync.Mutex
	conn      *websocket.Conn
	msgID     uint64
	pending   map[uint64]chan cdpResult
	targetID  string
	sessionID string

	onMessage func() // called once per inbound message, used to reset backoff

	eventMu  sync.Mutex
	eventSub map[string][]func(json.RawMessage)
}

type cdpResult struct {
	raw json.RawMessage
	err string
}

// NewClient constructs a Client targeting the browser's debug port.
func NewClient(debugPort int, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		debugPort: debugPort,
		logger:    logger,
		pending:   make(map[uint64]chan cdpResult),
		eventSub:  make(map[string][]func(json.RawMessage)),
	}
}

// On subscribes fn to every CDP event named method (e.g. "Page.loadEventFired",
// "Network.responseReceived"). Subscriptions persist across reconnects; call
// On again after Connect if a fresh Client was constructed.
func (c *Client) On(method string, fn func(json.RawMessage)) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()
	c.eventSub[method] = append(c.eventSub[method], fn)
}

// Connect resolves the first page target on the debug port and opens a
// WebSocket to it.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	httpClient := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://127.0.0.1:%d/json/list", c.debugPort), nil)
	if err != nil {
		return fmt.Errorf("browser: build target list request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("browser: list targets: %w", err)
	}
	defer resp.Body.Close()

	var targets []struct {
		ID                   string `json:"id"`
		Type                 string `json:"type"`
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return fmt.Errorf("browser: decode target list: %w", err)
	}

	var wsURL, targetID string
	for _, t := range targets {
		if t.Type == "page" {
			wsURL, targetID = t.WebSocketDebuggerURL, t.ID
			break
		}
	}
	if wsURL == "" {
		return fmt.Errorf("browser: no page target on debug port %d", c.debugPort)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("browser: dial CDP websocket: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.targetID = targetID
	c.mu.Unlock()

	go c.readMessages()

	for _, domain := range []string{"Page.enable", "DOM.enable", "CSS.enable", "Network.enable", "Runtime.enable"} {
		if _, err := c.Call(ctx, domain, nil); err != nil {
			c.logger.Warnw("enabling CDP domain failed", "domain", domain, "error", err)
		}
	}
	return nil
}

// TargetID reports the page target this client is attached to.
func (c *Client) TargetID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetID
}

// Close tears down the WebSocket connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// IsConnected reports whether the underlying socket is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SetOnMessage installs a hook invoked once per inbound CDP message,
// letting a reconnect wrapper reset its backoff on the first live sign of
// the connection actually working, not merely being open.
func (c *Client) SetOnMessage(fn func()) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

func (c *Client) readMessages() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			pending := c.pending
			c.pending = make(map[uint64]chan cdpResult)
			c.mu.Unlock()
			for _, ch := range pending {
				ch <- cdpResult{err: "browser: connection closed"}
			}
			return
		}

		c.mu.Lock()
		hook := c.onMessage
		c.mu.Unlock()
		if hook != nil {
			hook()
		}

		var response struct {
			ID     uint64          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
			Result json.RawMessage `json:"result"`
			Error  *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(msg, &response); err != nil {
			continue
		}
		if response.ID == 0 {
			if response.Method != "" {
				c.dispatchEvent(response.Method, response.Params)
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[response.ID]
		if ok {
			delete(c.pending, response.ID)
		}
		c.mu.Unlock()
		if !ok {
			continue
		}
		if response.Error != nil {
			ch <- cdpResult{err: response.Error.Message}
		} else {
			ch <- cdpResult{raw: response.Result}
		}
	}
}

func (c *Client) dispatchEvent(method string, params json.RawMessage) {
	c.eventMu.Lock()
	handlers := append([]func(json.RawMessage){}, c.eventSub[method]...)
	c.eventMu.Unlock()
	for _, fn := range handlers {
		fn(params)
	}
}

// Call sends a CDP method call and waits for its correlated response, or
// the 30s default command timeout, whichever comes first.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("browser: not connected")
	}
	id := atomic.AddUint64(&c.msgID, 1)
	ch := make(chan cdpResult, 1)
	c.pending[id] = ch
	sessionID := c.sessionID
	c.mu.Unlock()

	msg := map[string]interface{}{"id": id, "method": method}
	if params != nil {
		msg["params"] = params
	}
	if sessionID != "" {
		msg["sessionId"] = sessionID
	}

	c.mu.Lock()
	err := conn.WriteJSON(msg)
	c.mu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("browser: send CDP command: %w", err)
	}

	select {
	case result := <-ch:
		if result.err != "" {
			return nil, fmt.Errorf("browser: CDP error: %s", result.err)
		}
		return result.raw, nil
	case <-time.After(30 * time.Second):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("browser: CDP command timeout")
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}
