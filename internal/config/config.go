// Package config is the ambient configuration layer the distilled spec
// omits: it loads the broker socket path, command timeout, heartbeat
// interval, and CDP debug port from environment variables (with defaults
// matching spec.md §6) through viper, the way stacklok-toolhive's
// commands.go binds its flags through viper.BindPFlag.
package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lemon9247/agentfox/internal/ipc"
)

// Keys are the viper config keys, one per environment variable
// (AGENTFOX_<KEY>, upper-cased) or command flag.
const (
	KeySocket          = "socket"
	KeyCommandTimeout  = "command-timeout"
	KeyHeartbeatEvery  = "heartbeat-interval"
	KeyHeartbeatGrace  = "heartbeat-grace"
	KeyDebugPort       = "debug-port"
	KeyLogLevel        = "log-level"
)

// Config is the resolved configuration for either agentfox binary.
type Config struct {
	SocketPath        string
	CommandTimeout    time.Duration
	HeartbeatInterval time.Duration
	HeartbeatGrace    time.Duration
	DebugPort         int
	LogLevel          string
}

// BindFlags registers the shared flag set on cmd and binds each flag
// through viper so AGENTFOX_* environment variables and flags both
// resolve through the same lookup, matching the bind pattern
// stacklok-toolhive's cmd/thv/app/commands.go uses for its own flags.
func BindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("socket", ipc.DefaultSocketPath(), "IPC broker Unix socket path")
	flags.Duration("command-timeout", ipc.DefaultCommandTimeout, "per-command timeout")
	flags.Duration("heartbeat-interval", ipc.DefaultHeartbeatInterval, "broker heartbeat ping interval")
	flags.Duration("heartbeat-grace", ipc.DefaultHeartbeatGrace, "grace period to wait for a pong")
	flags.Int("debug-port", 9222, "Chromium --remote-debugging-port to dial")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag(KeySocket, flags.Lookup("socket"))
	_ = viper.BindPFlag(KeyCommandTimeout, flags.Lookup("command-timeout"))
	_ = viper.BindPFlag(KeyHeartbeatEvery, flags.Lookup("heartbeat-interval"))
	_ = viper.BindPFlag(KeyHeartbeatGrace, flags.Lookup("heartbeat-grace"))
	_ = viper.BindPFlag(KeyDebugPort, flags.Lookup("debug-port"))
	_ = viper.BindPFlag(KeyLogLevel, flags.Lookup("log-level"))

	viper.SetEnvPrefix("agentfox")
	viper.AutomaticEnv()
}

// Load reads the bound values back out of viper into a Config.
func Load() Config {
	return Config{
		SocketPath:        viper.GetString(KeySocket),
		CommandTimeout:    viper.GetDuration(KeyCommandTimeout),
		HeartbeatInterval: viper.GetDuration(KeyHeartbeatEvery),
		HeartbeatGrace:    viper.GetDuration(KeyHeartbeatGrace),
		DebugPort:         viper.GetInt(KeyDebugPort),
		LogLevel:          viper.GetString(KeyLogLevel),
	}
}
