package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Lemon9247/agentfox/internal/command"
	"github.com/Lemon9247/agentfox/internal/frame"
)

type fakeClient struct {
	t    *testing.T
	conn net.Conn
	dec  *frame.Decoder
	buf  []byte
}

func dialFake(t *testing.T, path string) *fakeClient {
	t.Helper()
	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return &fakeClient{t: t, conn: conn, dec: frame.NewDecoder(frame.IPC), buf: make([]byte, 4096)}
}

func (f *fakeClient) readEnvelope(timeout time.Duration) (command.Envelope, error) {
	f.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		n, err := f.conn.Read(f.buf)
		if n > 0 {
			msgs, decErr := f.dec.Push(f.buf[:n])
			if decErr != nil {
				return command.Envelope{}, decErr
			}
			if len(msgs) > 0 {
				var env command.Envelope
				if err := json.Unmarshal(msgs[0], &env); err != nil {
					return command.Envelope{}, err
				}
				return env, nil
			}
		}
		if err != nil {
			return command.Envelope{}, err
		}
	}
}

func (f *fakeClient) writeEnvelope(env command.Envelope) error {
	buf, err := frame.IPC.Encode(env)
	if err != nil {
		return err
	}
	_, err = f.conn.Write(buf)
	return err
}

func newTestBroker(t *testing.T, opts ...Option) (*Broker, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentfox-test.sock")
	b := New(path, opts...)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b, path
}

func TestSendCommandRoundTrip(t *testing.T) {
	b, path := newTestBroker(t)
	client := dialFake(t, path)

	if err := b.WaitForConnection(context.Background()); err != nil {
		t.Fatalf("wait for connection: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		env, err := client.readEnvelope(2 * time.Second)
		if err != nil {
			t.Errorf("read command: %v", err)
			return
		}
		if env.Type != command.EnvelopeCommand || env.Command == nil {
			t.Errorf("expected command envelope, got %+v", env)
			return
		}
		resp := command.Ok(env.Command.ID, map[string]string{"status": "ok"})
		if err := client.writeEnvelope(command.Envelope{Type: command.EnvelopeResponse, Response: &resp}); err != nil {
			t.Errorf("write response: %v", err)
		}
	}()

	resp, err := b.SendCommand(context.Background(), command.Command{ID: "c1", Action: command.ActionNavigate})
	if err != nil {
		t.Fatalf("send command: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success response, got %+v", resp)
	}
	<-done
}

func TestSecondClientRejectedImmediately(t *testing.T) {
	_, path := newTestBroker(t)
	first := dialFake(t, path)
	defer first.conn.Close()

	second, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	n, err := second.Read(buf)
	if n != 0 || err == nil {
		t.Fatalf("expected second client connection to be closed immediately, got n=%d err=%v", n, err)
	}
}

func TestSendCommandBeforeConnectionIsNeverConnected(t *testing.T) {
	b, _ := newTestBroker(t)
	_, err := b.SendCommand(context.Background(), command.Command{ID: "c1", Action: command.ActionNavigate})
	if !errors.Is(err, command.ErrNeverConnected) {
		t.Fatalf("expected ErrNeverConnected, got %v", err)
	}
}

func TestSendCommandAfterDisconnectIsDisconnected(t *testing.T) {
	b, path := newTestBroker(t)
	client := dialFake(t, path)

	if err := b.WaitForConnection(context.Background()); err != nil {
		t.Fatalf("wait for connection: %v", err)
	}
	client.conn.Close()

	// Give the accept loop time to notice the closed connection.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		connected, _ := b.Status()
		if !connected {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, err := b.SendCommand(context.Background(), command.Command{ID: "c1", Action: command.ActionNavigate})
	if !errors.Is(err, command.ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}
}

func TestCommandTimesOutWhenNoResponseArrives(t *testing.T) {
	b, path := newTestBroker(t, WithCommandTimeout(50*time.Millisecond))
	client := dialFake(t, path)
	defer client.conn.Close()

	if err := b.WaitForConnection(context.Background()); err != nil {
		t.Fatalf("wait for connection: %v", err)
	}

	start := time.Now()
	_, err := b.SendCommand(context.Background(), command.Command{ID: "c1", Action: command.ActionNavigate})
	if !errors.Is(err, command.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("timed out too early: %v", elapsed)
	}
}

func TestLateReplyAfterTimeoutIsDropped(t *testing.T) {
	b, path := newTestBroker(t, WithCommandTimeout(30*time.Millisecond))
	client := dialFake(t, path)
	defer client.conn.Close()

	if err := b.WaitForConnection(context.Background()); err != nil {
		t.Fatalf("wait for connection: %v", err)
	}

	_, err := b.SendCommand(context.Background(), command.Command{ID: "c1", Action: command.ActionNavigate})
	if !errors.Is(err, command.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	resp := command.Ok("c1", "too late")
	if err := client.writeEnvelope(command.Envelope{Type: command.EnvelopeResponse, Response: &resp}); err != nil {
		t.Fatalf("write late response: %v", err)
	}

	// The broker must not panic or wedge on the late reply; a fresh command
	// under the same ID should proceed normally.
	time.Sleep(50 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		defer close(done)
		env, err := client.readEnvelope(2 * time.Second)
		if err != nil {
			t.Errorf("read second command: %v", err)
			return
		}
		r := command.Ok(env.Command.ID, "fresh")
		client.writeEnvelope(command.Envelope{Type: command.EnvelopeResponse, Response: &r})
	}()
	resp2, err := b.SendCommand(context.Background(), command.Command{ID: "c1", Action: command.ActionNavigate})
	if err != nil {
		t.Fatalf("second send command: %v", err)
	}
	if !resp2.Success {
		t.Fatalf("expected success, got %+v", resp2)
	}
	<-done
}

func TestHeartbeatLossDisconnectsClient(t *testing.T) {
	b, path := newTestBroker(t, WithHeartbeat(20*time.Millisecond, 20*time.Millisecond))
	client := dialFake(t, path)
	defer client.conn.Close()

	if err := b.WaitForConnection(context.Background()); err != nil {
		t.Fatalf("wait for connection: %v", err)
	}

	// The client never answers the ping, so the broker should force the
	// connection closed within roughly one heartbeat interval plus grace.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		connected, _ := b.Status()
		if !connected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected broker to disconnect client after missed heartbeat")
}

func TestBrokerRebindsAfterSocketRemoved(t *testing.T) {
	b, path := newTestBroker(t)

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove socket: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, err := net.Dial("unix", path); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("socket was never rebound after external removal")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWaitForConnectionReturnsImmediatelyWhenAlreadyConnected(t *testing.T) {
	b, path := newTestBroker(t)
	client := dialFake(t, path)
	defer client.conn.Close()

	if err := b.WaitForConnection(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := b.WaitForConnection(ctx); err != nil {
		t.Fatalf("second wait should return immediately: %v", err)
	}
}
