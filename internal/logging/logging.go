// Package logging builds ragvault's process-wide arbor logger from
// configuration, following the same writer-assembly idiom as the teacher
// service this module was adapted from: a console writer by default, an
// optional rotating file writer, and a minimal variant for stdio transports
// that must not interleave log lines with protocol framing.
package logging

import (
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/sourcevault/ragvault/internal/config"
)

// Setup builds a logger from cfg, adding a console writer and/or a file
// writer under <exec-dir>/logs/ragvault.log depending on cfg.Output.
func Setup(cfg config.LoggingConfig) arbor.ILogger {
	logger := arbor.NewLogger()

	hasFile, hasConsole := false, false
	for _, out := range cfg.Output {
		switch out {
		case "file":
			hasFile = true
		case "console", "stdout":
			hasConsole = true
		}
	}

	if hasFile {
		if execPath, err := os.Executable(); err == nil {
			logsDir := filepath.Join(filepath.Dir(execPath), "logs")
			if err := os.MkdirAll(logsDir, 0o755); err == nil {
				logger = logger.WithFileWriter(writerConfig(cfg, arbormodels.LogWriterTypeFile, filepath.Join(logsDir, "ragvault.log")))
			}
		}
	}

	if hasConsole || !hasFile {
		logger = logger.WithConsoleWriter(writerConfig(cfg, arbormodels.LogWriterTypeConsole, ""))
	}

	return logger.WithLevelFromString(cfg.Level)
}

// SetupMinimal builds a warn-level, console-only logger for the stdio MCP
// transport, so structured log output never corrupts the JSON-RPC framing
// the client reads from the same stream.
func SetupMinimal() arbor.ILogger {
	return arbor.NewLogger().
		WithConsoleWriter(arbormodels.WriterConfiguration{
			Type:             arbormodels.LogWriterTypeConsole,
			TimeFormat:       "15:04:05",
			DisableTimestamp: false,
		}).
		WithLevelFromString("warn")
}

func writerConfig(cfg config.LoggingConfig, kind arbormodels.LogWriterType, filename string) arbormodels.WriterConfiguration {
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = "15:04:05.000"
	}
	return arbormodels.WriterConfiguration{
		Type:             kind,
		FileName:         filename,
		TimeFormat:       timeFormat,
		DisableTimestamp: false,
		MaxSize:          100 * 1024 * 1024,
		MaxBackups:       3,
	}
}
