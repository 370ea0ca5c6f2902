package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewNopByDefault(t *testing.T) {
	log, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log == nil {
		t.Fatal("nil logger")
	}
	log.Info("discarded")
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Config{Console: true, Level: "loud"}); err == nil {
		t.Fatal("bad level accepted")
	}
}

func TestFileSinkWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")
	log, err := New(Config{File: path, Level: "debug", MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("tile built", zap.Int("tx", 3))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "tile built") {
		t.Fatalf("log entry missing: %q", data)
	}
}

func TestLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")
	log, err := New(Config{File: path, Level: "warn"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("below threshold")
	log.Warn("kept")
	_ = log.Sync()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "below threshold") {
		t.Fatal("info leaked past warn level")
	}
	if !strings.Contains(string(data), "kept") {
		t.Fatalf("warn entry missing: %q", data)
	}
}
