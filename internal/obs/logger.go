// Package obs is the ambient logging layer shared by both agentfox
// binaries: a zap.SugaredLogger writing exclusively to standard error,
// tagged per component the way the teacher repo bracket-tags its own
// log.Printf calls (e.g. "[browser]", "[mcp-bridge]").
package obs

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Revision is stamped into the first log line of every process, mirroring
// the teacher's init()-time "REVISION: ..." banner.
const Revision = "agentfox-v1"

// New builds a component-tagged sugared logger writing to stderr. level
// controls verbosity ("debug", "info", "warn"); an empty string defaults
// to "info". Standard output is never touched: it's reserved for the
// native-messaging/MCP stdio transports.
func New(component string, level string) *zap.SugaredLogger {
	lvl := zapcore.InfoLevel
	if level != "" {
		_ = lvl.UnmarshalText([]byte(level))
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		lvl,
	)

	logger := zap.New(core).Sugar().With("component", component)
	logger.Infow(fmt.Sprintf("%s starting", component), "revision", Revision)
	return logger
}
