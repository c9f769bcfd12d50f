// Command agentfox-gateway hosts component D (the MCP tool gateway, stdio
// transport) and component B (the IPC broker, Unix-domain socket server)
// in one OS process, per spec.md §2's process topology.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Lemon9247/agentfox/internal/config"
	"github.com/Lemon9247/agentfox/internal/gateway"
	"github.com/Lemon9247/agentfox/internal/ipc"
	"github.com/Lemon9247/agentfox/internal/obs"
)

var rootCmd = &cobra.Command{
	Use:   "agentfox-gateway",
	Short: "MCP tool gateway and IPC broker for agentfox",
	RunE:  runGateway,
}

func init() {
	config.BindFlags(rootCmd)
}

func runGateway(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger := obs.New("gateway", cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	broker := ipc.New(cfg.SocketPath,
		ipc.WithCommandTimeout(cfg.CommandTimeout),
		ipc.WithHeartbeat(cfg.HeartbeatInterval, cfg.HeartbeatGrace),
		ipc.WithLogger(logger.Named("broker")))

	if err := broker.Start(ctx); err != nil {
		return fmt.Errorf("agentfox-gateway: start broker: %w", err)
	}
	defer broker.Close()

	gw := gateway.New(broker, "agentfox", obs.Revision, logger.Named("mcp"))

	errCh := make(chan error, 1)
	go func() { errCh <- gw.ServeStdio(ctx) }()

	select {
	case <-ctx.Done():
		logger.Infow("shutting down")
		_ = broker.Close()
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("agentfox-gateway: mcp transport: %w", err)
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
