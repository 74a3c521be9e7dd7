// Package observability configures the process-wide zap logger.
//
// Commands log through CLILogger; long-lived components receive named child
// loggers via Logger. Init is called once by the root command after flags
// and config are resolved; before that, CLILogger is a console logger at
// info level so early failures are still visible.
package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging profiles.
const (
	// ProfileCLI writes human-readable console output to stderr.
	ProfileCLI = "CLI"

	// ProfileStructured writes JSON lines to stderr, for running under a
	// scheduler or log collector.
	ProfileStructured = "STRUCTURED"
)

// CLILogger is the process-wide logger. Replaced by Init.
var CLILogger = mustBuild("info", ProfileCLI)

// Init rebuilds the global logger with the given level and profile.
func Init(level, profile string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToUpper(profile) {
	case ProfileCLI, "":
		cfg = consoleConfig()
	case ProfileStructured:
		cfg = zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stderr"}
	default:
		return fmt.Errorf("unknown logging profile %q", profile)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	CLILogger = logger
	return nil
}

// Logger returns a named child of the global logger.
func Logger(name string) *zap.Logger {
	return CLILogger.Named(name)
}

// Sync flushes buffered log entries. Safe to call at process exit.
func Sync() {
	_ = CLILogger.Sync()
}

func consoleConfig() zap.Config {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	return cfg
}

func mustBuild(level, profile string) *zap.Logger {
	cfg := consoleConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		panic(err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
