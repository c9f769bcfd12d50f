package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestBindFlagsDefaults(t *testing.T) {
	viper.Reset()
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd)

	cfg := Load()
	if cfg.CommandTimeout <= 0 {
		t.Errorf("expected positive default command timeout, got %v", cfg.CommandTimeout)
	}
	if cfg.HeartbeatInterval <= 0 {
		t.Errorf("expected positive default heartbeat interval, got %v", cfg.HeartbeatInterval)
	}
	if cfg.DebugPort != 9222 {
		t.Errorf("expected default debug port 9222, got %d", cfg.DebugPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %q", cfg.LogLevel)
	}
	if cfg.SocketPath == "" {
		t.Error("expected non-empty default socket path")
	}
}
