package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Reconnector supervises a Client's connection to the browser's debug
// port, retrying with exponential backoff when the connection drops.
// Each drop that Run detects starts a fresh sequence of at most five
// attempts, 1s initial interval doubling each try, capped at 16s — a
// dropped connection 20 minutes in doesn't inherit the backoff state from
// one that failed at startup. When a sequence is exhausted, Run starts a
// new one on its next one-second tick. The attempt counter is not tied to
// the live signal recorded by markLive.
type Reconnector struct {
	client    *Client
	logger    *zap.SugaredLogger
	onConnect func()

	mu   sync.Mutex
	live bool
}

// NewReconnector wraps client. onConnect, if non-nil, runs once after
// every successful (re)connect — callers use it to re-subscribe CDP
// domain state that doesn't survive a new WebSocket session.
func NewReconnector(client *Client, logger *zap.SugaredLogger, onConnect func()) *Reconnector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	r := &Reconnector{client: client, logger: logger, onConnect: onConnect}
	client.SetOnMessage(r.markLive)
	return r
}

// markLive fires on the first inbound CDP message after a (re)connect: the
// WebSocket handshake succeeding only proves the socket opened, not that
// the browser is actually answering. The signal is recorded and logged
// once per (re)connect; it does not reset the reconnect attempt counter.
func (r *Reconnector) markLive() {
	r.mu.Lock()
	alreadyLive := r.live
	r.live = true
	r.mu.Unlock()
	if !alreadyLive {
		r.logger.Debugw("browser connection confirmed live")
	}
}

func (r *Reconnector) resetLive() {
	r.mu.Lock()
	r.live = false
	r.mu.Unlock()
}

// Connect performs the initial connection. It does not retry: a failure
// to connect at all means there is no browser to talk to yet, which is a
// startup configuration problem rather than a transient drop.
func (r *Reconnector) Connect(ctx context.Context) error {
	r.resetLive()
	if err := r.client.Connect(ctx); err != nil {
		return err
	}
	if r.onConnect != nil {
		r.onConnect()
	}
	return nil
}

// Run blocks, watching the client's connection state, and reconnects with
// backoff whenever it drops, until ctx is canceled. Callers run this in
// its own goroutine alongside the relay's command loop.
func (r *Reconnector) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if r.client.IsConnected() {
			continue
		}
		r.logger.Warnw("browser connection lost, reconnecting")
		if err := r.reconnect(ctx); err != nil {
			r.logger.Errorw("reconnect attempts exhausted", "error", err)
		}
	}
}

func (r *Reconnector) reconnect(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 16 * time.Second
	b.RandomizationFactor = 0

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		r.resetLive()
		if err := r.client.Connect(ctx); err != nil {
			return struct{}{}, fmt.Errorf("agentfox: reconnect: %w", err)
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(5))
	if err != nil {
		return err
	}

	r.logger.Infow("browser reconnected")
	if r.onConnect != nil {
		r.onConnect()
	}
	return nil
}
