package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"quizroom-service/internal/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zap.DebugLevel,
		" WARN ":  zap.WarnLevel,
		"warning": zap.WarnLevel,
		"error":   zap.ErrorLevel,
		"info":    zap.InfoLevel,
		"":        zap.InfoLevel,
		"verbose": zap.InfoLevel,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizroom.log")
	log := New(config.LogConfig{Level: "warn", Format: "json", File: path})

	log.Info("dropped below level")
	log.Warn("room closed", zap.String("room", "R1"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "dropped below level") {
		t.Fatalf("info entry written at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"room closed"`) || !strings.Contains(out, `"room":"R1"`) {
		t.Fatalf("expected structured warn entry, got %s", out)
	}
}
