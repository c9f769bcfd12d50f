package relay

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Lemon9247/agentfox/internal/command"
	"github.com/Lemon9247/agentfox/internal/frame"
)

func TestNativeBridgeDispatchRoundTrip(t *testing.T) {
	stdinR, stdinW := io.Pipe()
	var stdout bytes.Buffer
	var stdoutMu sync.Mutex

	bridge := NewNativeBridge(stdinR, syncWriter{&stdout, &stdoutMu}, nil)
	bridge.Start()

	go func() {
		// Act as the extension: read the command frame to fully drain it,
		// then reply.
		time.Sleep(20 * time.Millisecond)
		stdoutMu.Lock()
		raw := stdout.Bytes()
		stdoutMu.Unlock()

		dec := frame.NewDecoder(frame.Native)
		msgs, err := dec.Push(raw)
		if err != nil || len(msgs) != 1 {
			t.Errorf("expected 1 decoded command, got %d err=%v", len(msgs), err)
			return
		}
		resp := command.Ok("c1", "done")
		buf, _ := frame.Native.Encode(resp)
		stdinW.Write(buf)
	}()

	resp := bridge.Dispatch(context.Background(), command.Command{ID: "c1", Action: command.ActionClick})
	if !resp.Success {
		t.Fatalf("expected success response, got %+v", resp)
	}
}

func TestNativeBridgeClosesDoneOnEOF(t *testing.T) {
	stdinR, stdinW := io.Pipe()
	var stdout bytes.Buffer
	var stdoutMu sync.Mutex

	bridge := NewNativeBridge(stdinR, syncWriter{&stdout, &stdoutMu}, nil)
	bridge.Start()
	stdinW.Close()

	select {
	case <-bridge.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected Done to close on stdin EOF")
	}
}

// syncWriter guards a bytes.Buffer with a mutex so the test's reader
// goroutine and the bridge's writer goroutine can share it safely.
type syncWriter struct {
	buf *bytes.Buffer
	mu  *sync.Mutex
}

func (w syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}
