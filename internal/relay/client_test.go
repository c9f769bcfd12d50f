package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/Lemon9247/agentfox/internal/command"
	"github.com/Lemon9247/agentfox/internal/frame"
)

type echoDispatcher struct{}

func (echoDispatcher) Dispatch(_ context.Context, cmd command.Command) command.Response {
	return command.Ok(cmd.ID, map[string]string{"action": string(cmd.Action)})
}

type fakeBroker struct {
	ln net.Listener
}

func startFakeBroker(t *testing.T) (*fakeBroker, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "broker-test.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return &fakeBroker{ln: ln}, path
}

func (fb *fakeBroker) accept(t *testing.T) net.Conn {
	t.Helper()
	conn, err := fb.ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return conn
}

func readEnvelope(t *testing.T, conn net.Conn, dec *frame.Decoder, timeout time.Duration) command.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			msgs, decErr := dec.Push(buf[:n])
			if decErr != nil {
				t.Fatalf("decode: %v", decErr)
			}
			if len(msgs) > 0 {
				var env command.Envelope
				if err := json.Unmarshal(msgs[0], &env); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				return env
			}
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
	}
}

func writeEnvelope(t *testing.T, conn net.Conn, env command.Envelope) {
	t.Helper()
	buf, err := frame.IPC.Encode(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := conn.Write(buf); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestClientDispatchesCommandAndRepliesWithResponse(t *testing.T) {
	fb, path := startFakeBroker(t)
	defer fb.ln.Close()

	client := NewClient(path, echoDispatcher{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.Run(ctx)

	conn := fb.accept(t)
	defer conn.Close()
	dec := frame.NewDecoder(frame.IPC)

	writeEnvelope(t, conn, command.Envelope{Type: command.EnvelopeCommand, Command: &command.Command{ID: "c1", Action: command.ActionNavigate}})

	env := readEnvelope(t, conn, dec, 2*time.Second)
	if env.Type != command.EnvelopeResponse || env.Response == nil {
		t.Fatalf("expected response envelope, got %+v", env)
	}
	if env.Response.ID != "c1" || !env.Response.Success {
		t.Fatalf("unexpected response: %+v", env.Response)
	}
}

func TestClientAnswersHeartbeatPing(t *testing.T) {
	fb, path := startFakeBroker(t)
	defer fb.ln.Close()

	client := NewClient(path, echoDispatcher{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.Run(ctx)

	conn := fb.accept(t)
	defer conn.Close()
	dec := frame.NewDecoder(frame.IPC)

	writeEnvelope(t, conn, command.Envelope{Type: command.EnvelopePing})

	env := readEnvelope(t, conn, dec, 2*time.Second)
	if env.Type != command.EnvelopePong {
		t.Fatalf("expected pong, got %+v", env)
	}
}

func TestClientLivenessLossExitsCleanly(t *testing.T) {
	fb, path := startFakeBroker(t)
	defer fb.ln.Close()

	client := NewClient(path, echoDispatcher{}, WithLiveness(10*time.Millisecond, 30*time.Millisecond))

	conn := make(chan net.Conn, 1)
	go func() { conn <- fb.accept(t) }()

	errCh := make(chan error, 1)
	go func() { errCh <- client.Run(context.Background()) }()

	c := <-conn
	defer c.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrLivenessLost) {
			t.Fatalf("expected ErrLivenessLost, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected client to exit after liveness loss")
	}
}

func TestClientReturnsErrorWhenDialFails(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "does-not-exist.sock"), echoDispatcher{})
	if err := client.Run(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
}
