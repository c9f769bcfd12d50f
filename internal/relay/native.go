package relay

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/Lemon9247/agentfox/internal/command"
	"github.com/Lemon9247/agentfox/internal/frame"
)

// NativeBridge is the literal native-messaging reframer: it writes every
// command it's asked to dispatch as a native-dialect frame on stdout and
// resolves once the matching response arrives as a native-dialect frame on
// stdin. It exists for compatibility with a real native-messaging
// counterpart (a genuine browser extension); the standalone CDP dispatcher
// in internal/browser is used instead when no such counterpart is present.
type NativeBridge struct {
	in     io.Reader
	out    io.Writer
	logger *zap.SugaredLogger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan command.Response

	done chan struct{}
}

// NewNativeBridge constructs a bridge over the given stdio-like streams.
func NewNativeBridge(in io.Reader, out io.Writer, logger *zap.SugaredLogger) *NativeBridge {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &NativeBridge{
		in:      in,
		out:     out,
		logger:  logger,
		pending: make(map[string]chan command.Response),
		done:    make(chan struct{}),
	}
}

// Start begins reading native-dialect frames from stdin in the background.
// Call Start once before any Dispatch call.
func (n *NativeBridge) Start() {
	go n.readLoop()
}

// Done is closed once stdin reaches EOF; the relay process should exit
// cleanly when this fires, closing its IPC client in turn.
func (n *NativeBridge) Done() <-chan struct{} { return n.done }

// Dispatch writes cmd to stdout as a native frame and blocks until the
// correlated response arrives on stdin or ctx is canceled.
func (n *NativeBridge) Dispatch(ctx context.Context, cmd command.Command) command.Response {
	ch := make(chan command.Response, 1)
	n.mu.Lock()
	n.pending[cmd.ID] = ch
	n.mu.Unlock()

	buf, err := frame.Native.Encode(command.Envelope{Type: command.EnvelopeCommand, Command: &cmd})
	if err != nil {
		n.mu.Lock()
		delete(n.pending, cmd.ID)
		n.mu.Unlock()
		return command.Fail(cmd.ID, err.Error())
	}

	n.writeMu.Lock()
	_, werr := n.out.Write(buf)
	n.writeMu.Unlock()
	if werr != nil {
		// A write failure on stdout fails this command with the write
		// error. The bridge keeps running; nothing here terminates the
		// relay process.
		n.mu.Lock()
		delete(n.pending, cmd.ID)
		n.mu.Unlock()
		return command.Fail(cmd.ID, werr.Error())
	}

	select {
	case resp := <-ch:
		return resp
	case <-ctx.Done():
		n.mu.Lock()
		delete(n.pending, cmd.ID)
		n.mu.Unlock()
		return command.Fail(cmd.ID, ctx.Err().Error())
	}
}

func (n *NativeBridge) readLoop() {
	defer close(n.done)
	dec := frame.NewDecoder(frame.Native)
	buf := make([]byte, 32*1024)

	for {
		nread, err := n.in.Read(buf)
		if nread > 0 {
			msgs, decErr := dec.Push(buf[:nread])
			for _, msg := range msgs {
				n.deliver(msg)
			}
			if decErr != nil {
				// Framing error on stdin: skip the message, keep running.
				n.logger.Warnw("native framing error, skipping message", "error", decErr)
				dec.Reset()
			}
		}
		if err != nil {
			return
		}
	}
}

func (n *NativeBridge) deliver(payload []byte) {
	var resp command.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		n.logger.Warnw("malformed native response, dropping", "error", err)
		return
	}
	n.mu.Lock()
	ch, ok := n.pending[resp.ID]
	if ok {
		delete(n.pending, resp.ID)
	}
	n.mu.Unlock()
	if ok {
		ch <- resp
	}
}
