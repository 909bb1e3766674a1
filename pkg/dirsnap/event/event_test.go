package event

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	var r Recorder

	Infof(&r, "a.txt", "found %d", 1)
	Okf(&r, "b.txt", "copied")
	Errf(&r, "", "failed: %s", "boom")

	events := r.Events()
	require.Len(t, events, 3)
	assert.Equal(t, Event{Level: Info, Path: "a.txt", Message: "found 1"}, events[0])
	assert.Equal(t, Ok, events[1].Level)
	assert.Equal(t, "failed: boom", events[2].Message)

	assert.Equal(t, 1, r.Count(Err))
	assert.Equal(t, 0, r.Count(Level(9)))
}

func TestMulti(t *testing.T) {
	var a, b Recorder
	s := Multi(&a, nil, &b)

	Okf(s, "x", "done")

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Infof(Discard, "", "ignored") })
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "info", Info.String())
	assert.Equal(t, "ok", Ok.String())
	assert.Equal(t, "err", Err.String())
	assert.Equal(t, "unknown", Level(-1).String())
}

func TestLogSink(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.log")
	require.NoError(t, logging.Init(logging.Config{Level: "info", Path: logPath}))
	t.Cleanup(func() { _ = logging.Close() })

	s := NewLogSink(logging.Get("event-test"))
	Okf(s, "docs/a.txt", "copied file")
	Errf(s, "docs/b.txt", "copy failed")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	content := string(data)

	assert.True(t, strings.Contains(content, "copied file"))
	assert.True(t, strings.Contains(content, "docs/b.txt"))
	assert.True(t, strings.Contains(content, "ERRO"), "errors are logged at error level: %s", content)
}
