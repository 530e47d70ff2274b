package shared

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestFormatBytes(t *testing.T) {
	tc := []struct {
		name string
		n    int64
		want string
	}{
		{name: "bytes", n: 512, want: "512 B"},
		{name: "kibibytes", n: 2048, want: "2.0 KiB"},
		{name: "mebibytes", n: 5 * 1024 * 1024, want: "5.0 MiB"},
		{name: "fractional", n: 1536 * 1024, want: "1.5 MiB"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatBytes(tt.n); got != tt.want {
				t.Errorf("FormatBytes(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tc := []struct {
		in   string
		want log.Level
	}{
		{in: "", want: log.InfoLevel},
		{in: "debug", want: log.DebugLevel},
		{in: "WARN", want: log.WarnLevel},
		{in: "nonsense", want: log.InfoLevel},
	}

	for _, tt := range tc {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggers(t *testing.T) {
	t.Run("NewLogger writes to writer", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&buf)
		WithLogger(l, "run", "abc").Info("hello")
		if !strings.Contains(buf.String(), "hello") || !strings.Contains(buf.String(), "run=abc") {
			t.Errorf("unexpected log output: %q", buf.String())
		}
	})

	t.Run("NewFileLogger creates file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "mtpsync.log")
		l, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger() error = %v", err)
		}
		l.Info("written")

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("log file should exist: %v", err)
		}
		if !strings.Contains(string(data), "written") {
			t.Errorf("log file missing message: %q", string(data))
		}
	})
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := ExpandHome("~/music"); got != filepath.Join(home, "music") {
		t.Errorf("ExpandHome(~/music) = %s", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandHome should leave absolute paths alone, got %s", got)
	}
	if got := ExpandHome("~user/x"); got != "~user/x" {
		t.Errorf("ExpandHome should not expand ~user, got %s", got)
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("GenerateID should not repeat")
	}
	if len(a) != 36 {
		t.Errorf("expected uuid string length 36, got %d", len(a))
	}
}
