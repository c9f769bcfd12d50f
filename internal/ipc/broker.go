// Package ipc implements the IPC broker: a single-client Unix-domain-socket
// server that multiplexes concurrent commands by correlation ID and keeps
// the link alive with heartbeats.
package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Lemon9247/agentfox/internal/command"
	"github.com/Lemon9247/agentfox/internal/frame"
)

// socketWatchDebounce absorbs the burst of filesystem events a socket
// removal can produce (the remove itself, plus whatever else touches the
// directory around the same time) before triggering a rebind, the same
// per-path debounce idiom the teacher's drivesync watcher uses.
const socketWatchDebounce = 500 * time.Millisecond

const (
	// DefaultCommandTimeout is the per-command timeout.
	DefaultCommandTimeout = 30 * time.Second
	// DefaultHeartbeatInterval is the ping cadence.
	DefaultHeartbeatInterval = 15 * time.Second
	// DefaultHeartbeatGrace is how long the broker waits for a pong.
	DefaultHeartbeatGrace = 5 * time.Second
)

// Event is emitted on the broker's Events channel when a client attaches or
// detaches.
type Event struct {
	Type      EventType
	Err       error // set for EventError
}

// EventType distinguishes the kinds of lifecycle event the broker emits.
type EventType int

const (
	EventClientConnected EventType = iota
	EventClientDisconnected
	EventError
)

// Broker owns the local stream-socket endpoint, accepts exactly one client
// connection at a time, and correlates commands with responses.
type Broker struct {
	socketPath       string
	commandTimeout   time.Duration
	heartbeatEvery   time.Duration
	heartbeatGrace   time.Duration
	logger           *zap.SugaredLogger

	mu              sync.Mutex
	listener        net.Listener
	fsWatcher       *fsnotify.Watcher
	conn            net.Conn
	everConnected   bool
	awaitingPong    bool
	pending         map[string]*pendingEntry
	connectedSignal chan struct{} // closed when a client is attached

	Events chan Event

	closeOnce sync.Once
	closed    chan struct{}
}

// Option configures a Broker at construction.
type Option func(*Broker)

// WithCommandTimeout overrides the default per-command timeout.
func WithCommandTimeout(d time.Duration) Option { return func(b *Broker) { b.commandTimeout = d } }

// WithHeartbeat overrides the default heartbeat interval and grace period.
func WithHeartbeat(every, grace time.Duration) Option {
	return func(b *Broker) { b.heartbeatEvery = every; b.heartbeatGrace = grace }
}

// WithLogger sets the broker's logger.
func WithLogger(l *zap.SugaredLogger) Option { return func(b *Broker) { b.logger = l } }

// New constructs a Broker bound to socketPath once Start is called.
func New(socketPath string, opts ...Option) *Broker {
	b := &Broker{
		socketPath:      socketPath,
		commandTimeout:  DefaultCommandTimeout,
		heartbeatEvery:  DefaultHeartbeatInterval,
		heartbeatGrace:  DefaultHeartbeatGrace,
		logger:          zap.NewNop().Sugar(),
		pending:         make(map[string]*pendingEntry),
		connectedSignal: make(chan struct{}),
		Events:          make(chan Event, 8),
		closed:          make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// DefaultSocketPath resolves the default endpoint: the runtime directory
// when available, otherwise a per-user path under /tmp.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "agentfox.sock")
	}
	return fmt.Sprintf("/tmp/agentfox-%d.sock", os.Getuid())
}

// Start unlinks any stale endpoint file, binds, and begins accepting.
// Socket errors at this stage are fatal to startup.
func (b *Broker) Start(ctx context.Context) error {
	if err := os.RemoveAll(b.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ipc: removing stale socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(b.socketPath), 0o700); err != nil {
		return fmt.Errorf("ipc: preparing socket directory: %w", err)
	}

	ln, err := net.Listen("unix", b.socketPath)
	if err != nil {
		return fmt.Errorf("ipc: listen on %s: %w", b.socketPath, err)
	}
	b.listener = ln

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		b.logger.Warnw("socket directory watch disabled", "error", err)
	} else if err := watcher.Add(filepath.Dir(b.socketPath)); err != nil {
		b.logger.Warnw("socket directory watch disabled", "error", err)
		watcher.Close()
	} else {
		b.fsWatcher = watcher
		go b.watchSocketDir(ctx, watcher)
	}

	go b.acceptLoop(ctx)
	return nil
}

// watchSocketDir rebinds the listener if the socket file is removed out
// from under it externally — a resilience feature beyond the minimum
// "unlinks any stale endpoint file" startup behavior, debounced per the
// teacher's drivesync watcher idiom so a burst of directory events
// triggers at most one rebind.
func (b *Broker) watchSocketDir(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	var timer *time.Timer
	rebind := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-b.closed:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Name != b.socketPath || (ev.Op&(fsnotify.Remove|fsnotify.Rename) == 0) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(socketWatchDebounce, func() {
				select {
				case rebind <- struct{}{}:
				default:
				}
			})
		case <-rebind:
			if err := b.rebindListener(); err != nil {
				b.logger.Warnw("rebinding socket after external removal failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			b.logger.Warnw("socket directory watch error", "error", err)
		}
	}
}

func (b *Broker) rebindListener() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.closed:
		return nil
	default:
	}
	if err := os.RemoveAll(b.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ipc: removing socket before rebind: %w", err)
	}
	ln, err := net.Listen("unix", b.socketPath)
	if err != nil {
		return fmt.Errorf("ipc: rebind listen on %s: %w", b.socketPath, err)
	}
	old := b.listener
	b.listener = ln
	old.Close()
	b.logger.Infow("socket rebound after external removal")
	return nil
}

// Close shuts the broker down: stops accepting, disconnects any attached
// client, and rejects every pending command.
func (b *Broker) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.closed)
		b.mu.Lock()
		if b.listener != nil {
			err = b.listener.Close()
		}
		conn := b.conn
		b.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		// fsWatcher is closed by watchSocketDir's own defer once it
		// observes b.closed; nothing to do here.
	})
	return err
}

func (b *Broker) acceptLoop(ctx context.Context) {
	for {
		b.mu.Lock()
		ln := b.listener
		b.mu.Unlock()

		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-b.closed:
				return
			default:
			}
			b.mu.Lock()
			rebound := b.listener != ln
			b.mu.Unlock()
			if rebound {
				// The old listener was closed out from under us by a
				// rebind; pick up the new one instead of dying.
				continue
			}
			b.emit(Event{Type: EventError, Err: err})
			return
		}

		b.mu.Lock()
		if b.conn != nil {
			// A second concurrent client is rejected immediately.
			b.mu.Unlock()
			b.logger.Warnw("rejecting second concurrent client")
			conn.Close()
			continue
		}
		b.conn = conn
		b.everConnected = true
		close(b.connectedSignal)
		b.mu.Unlock()

		b.logger.Infow("client connected")
		b.emit(Event{Type: EventClientConnected})

		connCtx, cancel := context.WithCancel(ctx)
		go b.heartbeatLoop(connCtx, conn)
		b.serveConn(conn)
		cancel()

		b.mu.Lock()
		b.conn = nil
		b.awaitingPong = false
		b.connectedSignal = make(chan struct{})
		b.mu.Unlock()

		b.rejectAllPending(command.ErrDisconnected)
		b.logger.Infow("client disconnected")
		b.emit(Event{Type: EventClientDisconnected})
	}
}

// serveConn reads frames from conn until it errs or closes, dispatching
// each decoded envelope. A framing violation kills this connection without
// taking down the broker itself.
func (b *Broker) serveConn(conn net.Conn) {
	dec := frame.NewDecoder(frame.IPC)
	buf := make([]byte, 64*1024)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			msgs, decErr := dec.Push(buf[:n])
			for _, msg := range msgs {
				b.dispatch(conn, msg)
			}
			if decErr != nil {
				b.logger.Warnw("framing error, closing connection", "error", decErr)
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (b *Broker) dispatch(conn net.Conn, payload []byte) {
	env, err := decodeEnvelope(payload)
	if err != nil {
		b.logger.Warnw("malformed envelope, dropping", "error", err)
		return
	}

	switch env.Type {
	case command.EnvelopeResponse:
		if env.Response != nil {
			b.resolvePending(*env.Response)
		}
	case command.EnvelopePing:
		b.writeEnvelope(conn, command.Envelope{Type: command.EnvelopePong})
	case command.EnvelopePong:
		b.mu.Lock()
		b.awaitingPong = false
		b.mu.Unlock()
	default:
		b.logger.Warnw("unexpected envelope type", "type", env.Type)
	}
}

// SendCommand installs a pending entry for cmd.ID, writes the framed
// envelope, and waits for either a matching response or the command
// timeout. The caller (the MCP gateway) is responsible for assigning a
// unique cmd.ID.
func (b *Broker) SendCommand(ctx context.Context, cmd command.Command) (command.Response, error) {
	b.mu.Lock()
	conn := b.conn
	if conn == nil {
		b.mu.Unlock()
		if b.everConnected {
			return command.Response{}, command.ErrDisconnected
		}
		return command.Response{}, command.ErrNeverConnected
	}

	entry := newPendingEntry()
	b.pending[cmd.ID] = entry
	timer := time.AfterFunc(b.commandTimeout, func() {
		b.timeoutPending(cmd.ID)
	})
	entry.timer = timer
	b.mu.Unlock()

	if err := b.writeEnvelope(conn, command.Envelope{Type: command.EnvelopeCommand, Command: &cmd}); err != nil {
		b.mu.Lock()
		delete(b.pending, cmd.ID)
		b.mu.Unlock()
		timer.Stop()
		return command.Response{}, fmt.Errorf("ipc: write command: %w", err)
	}

	select {
	case resp := <-entry.result:
		return resp, nil
	case err := <-entry.err:
		return command.Response{}, err
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, cmd.ID)
		b.mu.Unlock()
		timer.Stop()
		return command.Response{}, ctx.Err()
	}
}

func (b *Broker) resolvePending(resp command.Response) {
	b.mu.Lock()
	entry, ok := b.pending[resp.ID]
	if ok {
		delete(b.pending, resp.ID)
	}
	b.mu.Unlock()
	if !ok {
		// Late reply for an ID whose pending entry is already gone
		// (timed out or the client disconnected); dropped.
		return
	}
	entry.timer.Stop()
	entry.result <- resp
}

func (b *Broker) timeoutPending(id string) {
	b.mu.Lock()
	entry, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	entry.err <- command.ErrTimeout
}

func (b *Broker) rejectAllPending(reason error) {
	b.mu.Lock()
	pending := b.pending
	b.pending = make(map[string]*pendingEntry)
	b.mu.Unlock()

	for _, entry := range pending {
		entry.timer.Stop()
		entry.err <- reason
	}
}

// WaitForConnection blocks until a client is attached or ctx is done.
// It resolves immediately if a client is already connected.
func (b *Broker) WaitForConnection(ctx context.Context) error {
	b.mu.Lock()
	connected := b.conn != nil
	signal := b.connectedSignal
	b.mu.Unlock()
	if connected {
		return nil
	}
	select {
	case <-signal:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports whether a client is currently attached and whether one
// has ever attached, distinguishing "never connected" from "disconnected".
func (b *Broker) Status() (connected, everConnected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil, b.everConnected
}

func (b *Broker) writeEnvelope(conn net.Conn, env command.Envelope) error {
	buf, err := frame.IPC.Encode(env)
	if err != nil {
		return err
	}
	_, err = conn.Write(buf)
	return err
}

func (b *Broker) emit(ev Event) {
	select {
	case b.Events <- ev:
	default:
		// Events channel is a best-effort diagnostic stream; never block
		// the connection loop on a slow consumer.
	}
}

func decodeEnvelope(payload []byte) (command.Envelope, error) {
	var env command.Envelope
	err := json.Unmarshal(payload, &env)
	return env, err
}

// heartbeatLoop pings the attached client every heartbeatEvery and forces
// the connection closed if a pong doesn't arrive within heartbeatGrace.
// Only the broker ever initiates a ping; the relay just answers.
func (b *Broker) heartbeatLoop(ctx context.Context, conn net.Conn) {
	ticker := time.NewTicker(b.heartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.mu.Lock()
			if b.awaitingPong {
				b.mu.Unlock()
				continue
			}
			b.awaitingPong = true
			b.mu.Unlock()

			if err := b.writeEnvelope(conn, command.Envelope{Type: command.EnvelopePing}); err != nil {
				return
			}
			go b.watchForPong(ctx, conn)
		}
	}
}

func (b *Broker) watchForPong(ctx context.Context, conn net.Conn) {
	select {
	case <-ctx.Done():
	case <-time.After(b.heartbeatGrace):
		b.mu.Lock()
		missed := b.awaitingPong
		b.mu.Unlock()
		if missed {
			b.logger.Warnw("heartbeat missed, forcing disconnect")
			conn.Close()
		}
	}
}
