package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler keeps the messages it receives.
type recordingHandler struct {
	messages *[]string
	attrs    []slog.Attr
}

func (h recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h recordingHandler) Handle(_ context.Context, r slog.Record) error {
	*h.messages = append(*h.messages, r.Message)

	return nil
}

func (h recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return recordingHandler{messages: h.messages, attrs: append(h.attrs, attrs...)}
}

func (h recordingHandler) WithGroup(string) slog.Handler { return h }

func TestConfigureLoggingWithOptions(t *testing.T) { //nolint:paralleltest // Modifies the default logger
	var (
		buf      bytes.Buffer
		messages []string
	)

	logger := ConfigureLoggingWithOptions(Options{
		Subsystem:   "nestfsm-test",
		JSON:        true,
		MinLevel:    slog.LevelDebug,
		LegacyLevel: slog.LevelWarn,
		Output:      &buf,
		Handlers:    []slog.Handler{recordingHandler{messages: &messages}},
	})

	require.Same(t, logger, slog.Default())

	Get(With(context.Background(), "machine", "demo")).Info("State entered")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.Split(buf.Bytes(), []byte("\n"))[0], &line))
	assert.Equal(t, "nestfsm-test", line["subsystem"])
	assert.Equal(t, "demo", line["machine"])
	assert.Equal(t, GetPodName(), line["pod"])
	assert.Equal(t, []string{"State entered"}, messages)

	buf.Reset()
	log.Println("legacy line")
	assert.Contains(t, buf.String(), `"level":"WARN"`)

	ConfigureLoggingWithOptions(Options{Subsystem: "nestfsm-test", Output: &buf})
	buf.Reset()
	Get(WithSubsystem(context.Background(), "viewer")).Info("text line")
	assert.True(t, strings.Contains(buf.String(), "subsystem=viewer"))
}

func TestConfigureLoggingFromEnv(t *testing.T) { //nolint:paralleltest // Uses t.Setenv
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_JSON", "true")
	t.Setenv("LOG_OUTPUT", "stderr")

	var buf bytes.Buffer

	logger, err := ConfigureLogging("env-test", WithOutput(&buf))
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
	assert.Equal(t, "env-test", GetSubsystem(context.Background()))

	t.Setenv("LOG_OUTPUT", "syslog")

	_, err = ConfigureLogging("env-test")
	require.ErrorIs(t, err, ErrInvalidLogOutput)

	t.Setenv("LOG_OUTPUT", "stdout")
	t.Setenv("LOG_LEVEL", "loud")

	_, err = ConfigureLogging("env-test")
	require.Error(t, err)
}

func TestMutedLogger(t *testing.T) {
	t.Parallel()

	muted := Get(WithMuted(context.Background(), true))
	assert.False(t, muted.Enabled(context.Background(), slog.LevelError))

	assert.False(t, isMuted(WithMuted(context.Background(), false)))
}

func TestWithDoesNotAlias(t *testing.T) {
	t.Parallel()

	base := With(context.Background(), "a", 1)
	first := With(base, "b", 2)
	second := With(base, "c", 3)

	assert.Equal(t, []any{"a", 1, "b", 2}, getValues(first))
	assert.Equal(t, []any{"a", 1, "c", 3}, getValues(second))
	assert.Same(t, base, With(base))
}

func TestFanoutHandler(t *testing.T) {
	t.Parallel()

	var first, second []string

	quiet := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError})
	fanout := newFanoutHandler(recordingHandler{messages: &first}, recordingHandler{messages: &second}, quiet)

	logger := slog.New(fanout).With("k", "v").WithGroup("g")
	logger.Info("hello")

	assert.Equal(t, []string{"hello"}, first)
	assert.Equal(t, []string{"hello"}, second)
	assert.True(t, fanout.Enabled(context.Background(), slog.LevelDebug))
}
