package log

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelTrace, ParseLevel("trace"))
	assert.Equal(t, ParseLevel("info"), ParseLevel(""))
	assert.Equal(t, ParseLevel("info"), ParseLevel("loud"))
}

func TestVerbosity(t *testing.T) {
	tests := []struct {
		level string
		count int
		want  string
	}{
		{"info", 0, "info"},
		{"info", 1, "debug"},
		{"warn", 1, "debug"},
		{"trace", 1, "trace"},
		{"info", 2, "trace"},
		{"error", 5, "trace"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Verbosity(tt.level, tt.count), "%s -v x%d", tt.level, tt.count)
	}
}

func decode(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		out = append(out, rec)
	}
	return out
}

func TestNewLoggerSplitsStreams(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewLogger(ParseLevel("info"), &out, &errOut)

	logger.Debug("hidden")
	logger.Info("scanned", "entities", 3)
	logger.Warn("skipped macro")
	logger.Error("failed", "error", "boom")

	recs := decode(t, &out)
	require.Len(t, recs, 2)
	assert.Equal(t, "scanned", recs[0]["msg"])
	assert.EqualValues(t, 3, recs[0]["entities"])
	assert.Equal(t, "WARN", recs[1]["level"])

	errs := decode(t, &errOut)
	require.Len(t, errs, 1)
	assert.Equal(t, "failed", errs[0]["msg"])
}

func TestTraceLevelName(t *testing.T) {
	var out bytes.Buffer
	logger := NewLogger(LevelTrace, &out, io.Discard)
	logger.Log(context.Background(), LevelTrace, "token")
	recs := decode(t, &out)
	require.Len(t, recs, 1)
	assert.Equal(t, "TRACE", recs[0]["level"])
}

func TestConsoleHandlerOnTerminal(t *testing.T) {
	saved := isTerminal
	defer func() { isTerminal = saved }()
	isTerminal = func(io.Writer) bool { return true }

	var out bytes.Buffer
	NewLogger(ParseLevel("info"), &out, io.Discard).Info("hello")
	assert.Contains(t, out.String(), "msg=hello")
}

func TestSetupLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cxxwrap.log")
	logger, closers, err := SetupLogger("debug", path)
	require.NoError(t, err)
	logger.Debug("written", "file", "a.hpp")
	for _, c := range closers {
		require.NoError(t, c.Close())
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=written")
	assert.Contains(t, string(data), "file=a.hpp")

	_, _, err = SetupLogger("info", filepath.Join(t.TempDir(), "missing", "x.log"))
	assert.Error(t, err)
}
