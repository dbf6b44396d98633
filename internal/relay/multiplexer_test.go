package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deeptalk-backend/internal/models"
)

// plainWriter deliberately lacks http.Flusher.
type plainWriter struct {
	header http.Header
}

func (w *plainWriter) Header() http.Header        { return w.header }
func (w *plainWriter) Write(p []byte) (int, error) { return len(p), nil }
func (w *plainWriter) WriteHeader(int)             {}

// decodeSignals splits an event-stream body into its JSON payloads.
func decodeSignals(t *testing.T, body string) []map[string]any {
	t.Helper()
	var signals []map[string]any
	for _, frame := range strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n") {
		require.True(t, strings.HasPrefix(frame, "data: "), "frame %q missing data prefix", frame)
		var signal map[string]any
		require.NoError(t, json.Unmarshal([]byte(frame[len("data: "):]), &signal))
		signals = append(signals, signal)
	}
	return signals
}

func TestNewMultiplexer_RequiresFlusher(t *testing.T) {
	_, err := NewMultiplexer(&plainWriter{header: http.Header{}})
	assert.ErrorIs(t, err, ErrFlusherRequired)
}

func TestNewMultiplexer_SetsEventStreamHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	_, err := NewMultiplexer(rec)
	require.NoError(t, err)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Body.String(), "nothing written before Start")
}

func TestMultiplexer_FullLifecycle(t *testing.T) {
	rec := httptest.NewRecorder()
	mux, err := NewMultiplexer(rec)
	require.NoError(t, err)

	require.NoError(t, mux.Start())
	require.NoError(t, mux.Reasoning("hmm"))
	require.NoError(t, mux.Content("Hello"))
	require.NoError(t, mux.Content(" world"))
	require.NoError(t, mux.Done(&models.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}, "conv_abc"))
	assert.Equal(t, Completed, mux.State())

	signals := decodeSignals(t, rec.Body.String())
	require.Len(t, signals, 5)
	assert.Equal(t, "start", signals[0]["type"])
	assert.Equal(t, "reasoning", signals[1]["type"])
	assert.Equal(t, "hmm", signals[1]["content"])
	assert.Equal(t, "content", signals[2]["type"])
	assert.Equal(t, "Hello", signals[2]["content"])
	assert.Equal(t, "done", signals[4]["type"])
	assert.Equal(t, "conv_abc", signals[4]["conversationId"])
	usage, ok := signals[4]["usage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(5), usage["total_tokens"])
}

func TestMultiplexer_DoneWithNilUsageEmitsNull(t *testing.T) {
	rec := httptest.NewRecorder()
	mux, err := NewMultiplexer(rec)
	require.NoError(t, err)

	require.NoError(t, mux.Start())
	require.NoError(t, mux.Content("hi"))
	require.NoError(t, mux.Done(nil, "conv_1"))

	signals := decodeSignals(t, rec.Body.String())
	last := signals[len(signals)-1]
	v, present := last["usage"]
	assert.True(t, present, "usage key must appear even when no usage was reported")
	assert.Nil(t, v)
}

func TestMultiplexer_StartOnlyOnce(t *testing.T) {
	rec := httptest.NewRecorder()
	mux, err := NewMultiplexer(rec)
	require.NoError(t, err)

	require.NoError(t, mux.Start())
	assert.Error(t, mux.Start())
}

func TestMultiplexer_DeltaBeforeStartRejected(t *testing.T) {
	rec := httptest.NewRecorder()
	mux, err := NewMultiplexer(rec)
	require.NoError(t, err)

	assert.Error(t, mux.Content("too early"))
	assert.Empty(t, rec.Body.String())
}

func TestMultiplexer_NoSignalsAfterDone(t *testing.T) {
	rec := httptest.NewRecorder()
	mux, err := NewMultiplexer(rec)
	require.NoError(t, err)

	require.NoError(t, mux.Start())
	require.NoError(t, mux.Content("a"))
	require.NoError(t, mux.Done(nil, "conv_1"))

	before := rec.Body.Len()
	assert.Error(t, mux.Content("late"))
	assert.Error(t, mux.Done(nil, "conv_1"))
	assert.NoError(t, mux.Fail("late"), "Fail after terminal is a silent no-op")
	assert.Equal(t, before, rec.Body.Len(), "terminal state must stop all writes")
	assert.Equal(t, Completed, mux.State())
}

func TestMultiplexer_FailIsTerminal(t *testing.T) {
	rec := httptest.NewRecorder()
	mux, err := NewMultiplexer(rec)
	require.NoError(t, err)

	require.NoError(t, mux.Start())
	require.NoError(t, mux.Fail("Stream processing failed"))
	assert.Equal(t, Failed, mux.State())

	before := rec.Body.Len()
	assert.NoError(t, mux.Fail("again"))
	assert.Equal(t, before, rec.Body.Len())

	signals := decodeSignals(t, rec.Body.String())
	require.Len(t, signals, 2)
	assert.Equal(t, "error", signals[1]["type"])
	assert.Equal(t, "Stream processing failed", signals[1]["error"])
}
