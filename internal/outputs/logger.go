package outputs

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// Logger prints audit results to stdout. The text format prints the
// performance summary block followed by a structured log line; the json
// format prints one JSON document per audit.
type Logger struct {
	logger *slog.Logger
	config *config.LoggingConfig
	out    io.Writer
	mu     sync.Mutex
}

// NewLogger creates a new stdout logger
func NewLogger(cfg *config.LoggingConfig) (*Logger, error) {
	return newLogger(cfg, os.Stdout), nil
}

func newLogger(cfg *config.LoggingConfig, out io.Writer) *Logger {
	var logger *slog.Logger
	if cfg.Format != "json" {
		logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
			Level: ParseLogLevel(cfg.Level),
		}))
	}
	return &Logger{logger: logger, config: cfg, out: out}
}

// Write outputs an audit result
func (l *Logger) Write(result *models.AuditResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.config.Format == "json" {
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		data = append(data, '\n')
		_, err = l.out.Write(data)
		return err
	}

	if !result.Status.Success {
		errType, errMsg := "unknown", ""
		if result.Error != nil {
			errType, errMsg = result.Error.ErrorType, result.Error.ErrorMessage
		}
		l.logger.Warn("audit_failed",
			"site", result.Site.Name,
			"error_type", errType,
			"error", errMsg,
			"total_ms", result.Network.TotalDurationMs,
		)
		return nil
	}

	if _, err := io.WriteString(l.out, result.Summary); err != nil {
		return err
	}

	attrs := []any{
		"site", result.Site.Name,
		"score", result.Score,
		"total_ms", result.Network.TotalDurationMs,
	}
	if len(result.FailedChannels) > 0 {
		attrs = append(attrs, "failed_channels", result.FailedChannels)
	}
	l.logger.Info("audit_result", attrs...)

	return nil
}

// Name returns the output module name
func (l *Logger) Name() string {
	return "logger"
}

// ParseLogLevel converts a config level to slog.Level
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
