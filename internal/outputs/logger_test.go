package outputs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

func TestLogger_TextPrintsSummary(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	if err := l.Write(sampleResult("wikipedia", 85, true)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "=== Performance Summary ===") {
		t.Errorf("Expected output to start with the summary block, got:\n%s", out)
	}
	for _, want := range []string{"msg=audit_result", "site=wikipedia", "score=85"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestLogger_TextFailure(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	if err := l.Write(sampleResult("github", 0, false)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "Performance Summary") {
		t.Error("Failed audits should not print a summary")
	}
	for _, want := range []string{"level=WARN", "msg=audit_failed", "error_type=dns"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestLogger_FailedChannels(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	result := sampleResult("example", 70, true)
	result.FailedChannels = []string{"first-input"}
	l.Write(result)

	if !strings.Contains(buf.String(), "failed_channels=[first-input]") {
		t.Errorf("Expected failed channels in log line, got:\n%s", buf.String())
	}
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	l.Write(sampleResult("wikipedia", 85, true))
	l.Write(sampleResult("github", 0, false))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 JSON lines, got %d", len(lines))
	}

	var decoded models.AuditResult
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("Failed to decode JSON line: %v", err)
	}
	if decoded.Score != 85 || decoded.Site.Name != "wikipedia" {
		t.Errorf("Unexpected decoded result: %+v", decoded)
	}
	if v, ok := decoded.Vital("LCP"); !ok || v.Value != 2100 {
		t.Errorf("Expected LCP 2100 in decoded vitals, got %+v", decoded.Vitals)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for input, expected := range tests {
		if got := ParseLogLevel(input); got != expected {
			t.Errorf("ParseLogLevel(%q) = %v, expected %v", input, got, expected)
		}
	}
}
