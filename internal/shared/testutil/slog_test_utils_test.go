package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures log records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("test message", slog.String("key", "value"))
		logger.Error("error message", slog.Int("code", 500))

		if got := handler.Count(); got != 2 {
			t.Errorf("Expected 2 records, got %d", got)
		}
		if !handler.ContainsMessage("test message") {
			t.Error("Expected to find 'test message'")
		}
		if !handler.ContainsAttr("key", "value") {
			t.Error("Expected to find attribute key=value")
		}
	})

	t.Run("filters by level", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")
		logger.Error("error msg")

		if got := len(handler.GetRecordsByLevel(slog.LevelWarn)); got != 1 {
			t.Errorf("Expected 1 warn record, got %d", got)
		}
	})

	t.Run("derived loggers share the buffer", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.With("component", "reshaper").WithGroup("report").Info("done", slog.Int("rows", 3))

		r, ok := handler.FindRecord("done")
		if !ok {
			t.Fatal("record from derived logger not captured")
		}
		if r.Attrs["component"] != "reshaper" {
			t.Errorf("Expected component attr, got %v", r.Attrs)
		}
		if r.Attrs["report.rows"] != int64(3) {
			t.Errorf("Expected grouped rows attr, got %v", r.Attrs)
		}
	})

	t.Run("clear functionality", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("message")
		handler.Clear()

		if handler.Count() != 0 {
			t.Errorf("Expected 0 records after clear, got %d", handler.Count())
		}
	})
}

func TestWriteSensorCSV(t *testing.T) {
	dir := t.TempDir()
	path := WriteSensorCSV(t, filepath.Join(dir, "RAW_CSV_DATA"), "a.csv", []string{"Snapshot ID Tag", "Area"},
		[]Scan{{"Snapshot ID Tag": "E1", "Area": "4"}, {"Snapshot ID Tag": "E2"}})

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	want := "Snapshot ID Tag;Area\nE1;4\nE2;\n"
	if string(content) != want {
		t.Errorf("fixture content = %q, want %q", content, want)
	}
	if !strings.HasSuffix(path, "a.csv") {
		t.Errorf("unexpected path %s", path)
	}
}
