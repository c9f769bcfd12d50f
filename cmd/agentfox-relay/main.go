// Command agentfox-relay hosts component C (native-messaging reframing
// and broker-liveness polling) and component E (the CDP-backed browser
// dispatcher and accessibility-tree builder) in one OS process, per
// spec.md §2's process topology. By default it runs standalone and dials
// the browser's --remote-debugging-port directly; passed --native-host, it
// instead reframes every command onto its own stdin/stdout in the native
// dialect and leaves driving the browser to whatever real native-messaging
// counterpart spawned it, matching spec.md §4.C literally.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Lemon9247/agentfox/internal/browser"
	"github.com/Lemon9247/agentfox/internal/config"
	"github.com/Lemon9247/agentfox/internal/obs"
	"github.com/Lemon9247/agentfox/internal/relay"
)

var rootCmd = &cobra.Command{
	Use:   "agentfox-relay",
	Short: "Browser dispatcher and IPC broker client for agentfox",
	RunE:  runRelay,
}

var nativeHost bool

func init() {
	config.BindFlags(rootCmd)
	rootCmd.PersistentFlags().BoolVar(&nativeHost, "native-host", false,
		"reframe commands onto stdin/stdout in the native dialect instead of driving the browser over CDP directly")
}

func runRelay(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger := obs.New("relay", cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if nativeHost {
		return runNativeHost(ctx, cfg, logger)
	}
	return runCDP(ctx, cfg, logger)
}

// runCDP is the standalone mode: this process drives a live browser over
// its remote-debugging WebSocket itself.
func runCDP(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) error {
	client := browser.NewClient(cfg.DebugPort, logger.Named("cdp"))
	dispatcher := browser.NewDispatcher(client, cfg.DebugPort, logger.Named("dispatcher"))

	reconnector := browser.NewReconnector(client, logger.Named("cdp"), nil)
	if err := reconnector.Connect(ctx); err != nil {
		return fmt.Errorf("agentfox-relay: connect to browser: %w", err)
	}
	defer client.Close()

	go reconnector.Run(ctx)

	return runRelayClient(ctx, cfg, logger, dispatcher)
}

// runNativeHost is spec.md §4.C's literal native-messaging bridge: no CDP
// client is constructed here at all. Every command this process receives
// from the broker is reframed onto stdout in the native dialect, and the
// matching response is read back from stdin — actually driving the
// browser is the job of whatever registered this binary as its native
// messaging host.
func runNativeHost(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) error {
	bridge := relay.NewNativeBridge(os.Stdin, os.Stdout, logger.Named("native"))
	bridge.Start()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-bridge.Done()
		logger.Infow("native-messaging stdin closed")
		cancel()
	}()

	return runRelayClient(ctx, cfg, logger, bridge)
}

func runRelayClient(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger, dispatcher relay.Dispatcher) error {
	relayClient := relay.NewClient(cfg.SocketPath, dispatcher,
		relay.WithClientLogger(logger.Named("ipc")))

	errCh := make(chan error, 1)
	go func() { errCh <- relayClient.Run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Infow("shutting down")
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("agentfox-relay: %w", err)
		}
		return nil
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
