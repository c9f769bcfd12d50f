// Package relay implements the relay process's link to the IPC broker: it
// dials the broker's Unix socket as its one permitted client, answers
// heartbeat pings, and hands every incoming command to a Dispatcher,
// writing back whatever response the dispatcher produces.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Lemon9247/agentfox/internal/command"
	"github.com/Lemon9247/agentfox/internal/frame"
)

// ErrLivenessLost is returned by Run when the broker connection goes quiet
// for longer than the liveness timeout. The caller should treat this as a
// clean shutdown, not a crash: the browser will respawn the relay.
var ErrLivenessLost = errors.New("relay: broker connection liveness lost")

// Dispatcher executes a Command and returns its Response. Implementations
// typically drive a live browser (internal/browser) or, in native-host
// compatibility mode, reframe onto stdio (NativeBridge).
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd command.Command) command.Response
}

const (
	// DefaultLivenessPoll is the cadence at which the client checks that the
	// broker connection is still producing traffic.
	DefaultLivenessPoll = 1 * time.Second
	// DefaultLivenessTimeout is how long the connection may stay silent
	// before it's declared dead. It comfortably exceeds the broker's own
	// 15s heartbeat interval plus its 5s pong grace.
	DefaultLivenessTimeout = 35 * time.Second
)

// Client is the relay's IPC-socket half: a single, non-retrying connection
// to the broker. A reconnect is never attempted from here; on any loss the
// relay process is expected to exit and let the browser respawn it.
type Client struct {
	socketPath      string
	dispatcher      Dispatcher
	logger          *zap.SugaredLogger
	livenessPoll    time.Duration
	livenessTimeout time.Duration

	writeMu sync.Mutex

	mu           sync.Mutex
	lastActivity time.Time
}

// ClientOption configures a Client at construction.
type ClientOption func(*Client)

// WithClientLogger sets the client's logger.
func WithClientLogger(l *zap.SugaredLogger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithLiveness overrides the default liveness poll cadence and timeout.
func WithLiveness(poll, timeout time.Duration) ClientOption {
	return func(c *Client) { c.livenessPoll = poll; c.livenessTimeout = timeout }
}

// NewClient constructs a Client bound to the broker's socket path.
func NewClient(socketPath string, dispatcher Dispatcher, opts ...ClientOption) *Client {
	c := &Client{
		socketPath:      socketPath,
		dispatcher:      dispatcher,
		logger:          zap.NewNop().Sugar(),
		livenessPoll:    DefaultLivenessPoll,
		livenessTimeout: DefaultLivenessTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run dials the broker, then blocks serving commands until the connection
// is lost, a framing error occurs on the IPC link, or ctx is canceled.
// A framing error on the IPC side is fatal to the connection: no reconnect
// is attempted here.
func (c *Client) Run(ctx context.Context) error {
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("relay: dial broker: %w", err)
	}
	defer conn.Close()

	c.touch()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-runCtx.Done()
		conn.Close()
	}()

	livenessErr := make(chan error, 1)
	go c.watchLiveness(runCtx, conn, livenessErr)

	readErr := make(chan error, 1)
	go func() { readErr <- c.serve(conn) }()

	select {
	case err := <-readErr:
		return err
	case err := <-livenessErr:
		conn.Close()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) serve(conn net.Conn) error {
	dec := frame.NewDecoder(frame.IPC)
	buf := make([]byte, 64*1024)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			msgs, decErr := dec.Push(buf[:n])
			for _, msg := range msgs {
				c.touch()
				c.handle(conn, msg)
			}
			if decErr != nil {
				c.logger.Warnw("ipc framing error, closing connection", "error", decErr)
				return fmt.Errorf("relay: ipc framing: %w", decErr)
			}
		}
		if err != nil {
			return err
		}
	}
}

func (c *Client) handle(conn net.Conn, payload []byte) {
	var env command.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.logger.Warnw("malformed envelope from broker, dropping", "error", err)
		return
	}

	switch env.Type {
	case command.EnvelopePing:
		c.write(conn, command.Envelope{Type: command.EnvelopePong})
	case command.EnvelopeCommand:
		if env.Command == nil {
			return
		}
		cmd := *env.Command
		go func() {
			resp := c.dispatcher.Dispatch(context.Background(), cmd)
			c.write(conn, command.Envelope{Type: command.EnvelopeResponse, Response: &resp})
		}()
	default:
		c.logger.Warnw("unexpected envelope type from broker", "type", env.Type)
	}
}

// write serializes outbound frames so two concurrently dispatched commands
// never interleave their bytes on the wire.
func (c *Client) write(conn net.Conn, env command.Envelope) {
	buf, err := frame.IPC.Encode(env)
	if err != nil {
		c.logger.Errorw("encode envelope", "error", err)
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := conn.Write(buf); err != nil {
		c.logger.Warnw("write to broker failed", "error", err)
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *Client) watchLiveness(ctx context.Context, conn net.Conn, out chan<- error) {
	ticker := time.NewTicker(c.livenessPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			idle := time.Since(c.lastActivity)
			c.mu.Unlock()
			if idle > c.livenessTimeout {
				out <- ErrLivenessLost
				return
			}
		}
	}
}
