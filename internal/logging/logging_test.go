package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/steveyiyo/tutor-voice/internal/config"
)

func TestParseLevel(t *testing.T) {
	is := is.New(t)
	is.Equal(parseLevel("debug"), slog.LevelDebug)
	is.Equal(parseLevel("WARN"), slog.LevelWarn)
	is.Equal(parseLevel("error"), slog.LevelError)
	is.Equal(parseLevel(""), slog.LevelInfo)
}

func TestHandlerFormats(t *testing.T) {
	is := is.New(t)

	var buf bytes.Buffer
	slog.New(handler(&buf, "json", "info")).Info("hello", slog.String("k", "v"))
	var rec map[string]any
	is.NoErr(json.Unmarshal(buf.Bytes(), &rec))
	is.Equal(rec["msg"], "hello")
	is.Equal(rec["k"], "v")

	buf.Reset()
	slog.New(handler(&buf, "console", "info")).Info("hello")
	is.True(strings.Contains(buf.String(), "msg=hello"))

	buf.Reset()
	slog.New(handler(&buf, "json", "warn")).Info("dropped")
	is.Equal(buf.Len(), 0) // below level
}

func TestNewToWritesRotatedFile(t *testing.T) {
	is := is.New(t)
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "tutor.log")
	var console bytes.Buffer
	log := NewTo(&console, config.Config{LogFile: path, LogMaxSizeMB: 1, LogLevel: "info"})
	log.Info("session connected", slog.String("provider", "gemini"))

	is.True(strings.Contains(console.String(), `"provider":"gemini"`))
	data, err := os.ReadFile(path)
	is.NoErr(err)
	is.True(strings.Contains(string(data), "session connected"))
}
