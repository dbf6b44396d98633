package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deeptalk-backend/internal/kvstore"
	"deeptalk-backend/internal/models"
	"deeptalk-backend/internal/provider"
	"deeptalk-backend/internal/repository"
	"deeptalk-backend/internal/worker"
)

type chatFixture struct {
	chat  *Chat
	convs *repository.Conversations
	msgs  *repository.Messages
	saver *worker.Saver
}

func newChatFixture(t *testing.T, upstream http.HandlerFunc) *chatFixture {
	t.Helper()
	kv := kvstore.NewMemory()
	convs := repository.NewConversations(kv)
	msgs := repository.NewMessages(kv)
	saver := worker.NewSaver(convs, msgs, 16, 1, zerolog.Nop())

	var p *provider.Client
	if upstream != nil {
		srv := httptest.NewServer(upstream)
		t.Cleanup(srv.Close)
		p = provider.NewClient(srv.URL, "test-key", 5*time.Second, zerolog.Nop())
	} else {
		p = provider.NewClient("http://127.0.0.1:0", "test-key", time.Second, zerolog.Nop())
	}

	return &chatFixture{
		chat:  NewChat(p, convs, msgs, saver, zerolog.Nop()),
		convs: convs,
		msgs:  msgs,
		saver: saver,
	}
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want models.ModelConfig
	}{
		{
			name: "absent means defaults",
			raw:  "",
			want: models.ModelConfig{Model: "glm-4.6", Temperature: 0.7, MaxTokens: 2000},
		},
		{
			name: "plain string names the model",
			raw:  `"glm-4.5"`,
			want: models.ModelConfig{Model: "glm-4.5", Temperature: 0.7, MaxTokens: 2000},
		},
		{
			name: "aliases are normalized",
			raw:  `"glm-4-6"`,
			want: models.ModelConfig{Model: "glm-4.6", Temperature: 0.7, MaxTokens: 2000},
		},
		{
			name: "object overrides everything",
			raw:  `{"model":"glm-4.5","temperature":1.2,"maxTokens":500,"streamResponse":true}`,
			want: models.ModelConfig{Model: "glm-4.5", Temperature: 1.2, MaxTokens: 500, StreamResponse: true},
		},
		{
			name: "out-of-range values are clamped",
			raw:  `{"temperature":5,"maxTokens":90000}`,
			want: models.ModelConfig{Model: "glm-4.6", Temperature: 2, MaxTokens: 8000},
		},
		{
			name: "negative values are clamped up",
			raw:  `{"temperature":-1,"maxTokens":0}`,
			want: models.ModelConfig{Model: "glm-4.6", Temperature: 0, MaxTokens: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw json.RawMessage
			if tt.raw != "" {
				raw = json.RawMessage(tt.raw)
			}
			got, err := ResolveModel(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveModel_RejectsGarbage(t *testing.T) {
	_, err := ResolveModel(json.RawMessage(`[1,2,3]`))
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestPrepareTurn_RequiresMessage(t *testing.T) {
	f := newChatFixture(t, nil)

	_, err := f.chat.PrepareTurn(context.Background(), "user_1", &models.ChatRequest{Message: "   "})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestPrepareTurn_MintsConversationID(t *testing.T) {
	f := newChatFixture(t, nil)

	turn, err := f.chat.PrepareTurn(context.Background(), "user_1", &models.ChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(turn.ConversationID, "conv_"))
	require.Len(t, turn.upstream.Messages, 1)
	assert.Equal(t, "hello", turn.upstream.Messages[0].Content)
}

func TestPrepareTurn_UnknownConversation(t *testing.T) {
	f := newChatFixture(t, nil)

	_, err := f.chat.PrepareTurn(context.Background(), "user_1", &models.ChatRequest{
		Message:        "hello",
		ConversationID: "conv_missing",
	})
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestPrepareTurn_RejectsForeignConversation(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.convs.Create(ctx, &models.Conversation{ID: "conv_1", UserID: "someone_else"}))

	_, err := f.chat.PrepareTurn(ctx, "user_1", &models.ChatRequest{
		Message:        "hello",
		ConversationID: "conv_1",
	})
	var forbidden *ForbiddenError
	assert.ErrorAs(t, err, &forbidden)
}

func TestPrepareTurn_IncludesHistoryOldestFirst(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.convs.Create(ctx, &models.Conversation{ID: "conv_1", UserID: "user_1"}))
	require.NoError(t, f.msgs.Append(ctx, "conv_1", &models.Message{ID: "msg_1", Role: models.RoleUser, Content: "earlier question"}))
	require.NoError(t, f.msgs.Append(ctx, "conv_1", &models.Message{ID: "msg_2", Role: models.RoleAssistant, Content: "earlier answer"}))

	turn, err := f.chat.PrepareTurn(ctx, "user_1", &models.ChatRequest{
		Message:        "follow-up",
		ConversationID: "conv_1",
	})
	require.NoError(t, err)
	require.Len(t, turn.upstream.Messages, 3)
	assert.Equal(t, "earlier question", turn.upstream.Messages[0].Content)
	assert.Equal(t, "earlier answer", turn.upstream.Messages[1].Content)
	assert.Equal(t, "follow-up", turn.upstream.Messages[2].Content)
}

func TestCompleteTurn_PersistsAndResponds(t *testing.T) {
	f := newChatFixture(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "Hello back"}}},
			"usage":   map[string]any{"prompt_tokens": 2, "completion_tokens": 3, "total_tokens": 5},
		})
	})
	ctx := context.Background()

	turn, err := f.chat.PrepareTurn(ctx, "user_1", &models.ChatRequest{Message: "Hello"})
	require.NoError(t, err)

	resp, err := f.chat.CompleteTurn(ctx, turn)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, models.RoleUser, resp.Messages[0].Role)
	assert.Equal(t, "Hello back", resp.Messages[1].Content)
	assert.Equal(t, turn.ConversationID, resp.ConversationID)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 5, resp.Usage.TotalTokens)

	// Synchronous persistence: records exist before the response returns.
	stored, err := f.msgs.ListByConversation(ctx, turn.ConversationID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestCompleteTurn_NoChoicesIsInvalidUpstream(t *testing.T) {
	f := newChatFixture(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})
	ctx := context.Background()

	turn, err := f.chat.PrepareTurn(ctx, "user_1", &models.ChatRequest{Message: "Hello"})
	require.NoError(t, err)

	_, err = f.chat.CompleteTurn(ctx, turn)
	var invalid *InvalidUpstreamResponseError
	assert.ErrorAs(t, err, &invalid)
}

func TestStreamTurn_RelaysAndPersists(t *testing.T) {
	f := newChatFixture(t, func(w http.ResponseWriter, r *http.Request) {
		var body provider.ChatRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			assert.True(t, body.Stream)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range []string{
			`data: {"choices":[{"delta":{"content":"Hi"}}]}`,
			`data: {"choices":[{"delta":{"content":" there"}}],"usage":{"total_tokens":4}}`,
			`data: [DONE]`,
		} {
			w.Write([]byte(line + "\n\n"))
		}
	})
	f.saver.Start()
	ctx := context.Background()

	turn, err := f.chat.PrepareTurn(ctx, "user_1", &models.ChatRequest{Message: "Hello"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, f.chat.StreamTurn(ctx, rec, turn))
	f.saver.Stop()

	body := rec.Body.String()
	assert.Contains(t, body, `"type":"start"`)
	assert.Contains(t, body, `"type":"content"`)
	assert.Contains(t, body, `"type":"done"`)
	assert.Contains(t, body, turn.ConversationID)

	stored, err := f.msgs.ListByConversation(ctx, turn.ConversationID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "Hi there", stored[1].Content)

	conv, err := f.convs.Get(ctx, turn.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", conv.Title)
}

func TestStreamTurn_UpstreamRejectionBeforeStream(t *testing.T) {
	f := newChatFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "overloaded"}})
	})
	ctx := context.Background()

	turn, err := f.chat.PrepareTurn(ctx, "user_1", &models.ChatRequest{Message: "Hello"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = f.chat.StreamTurn(ctx, rec, turn)
	var ue *provider.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Empty(t, rec.Body.String(), "no event-stream bytes before the upstream is open")

	// Nothing persisted for a turn that never started.
	stored, err := f.msgs.ListByConversation(ctx, turn.ConversationID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestStreamTurn_MidStreamFailureSkipsPersistence(t *testing.T) {
	f := newChatFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"partial"}}]}` + "\n\n"))
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
		// Abort the connection mid-stream.
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, err := hj.Hijack()
			if err == nil {
				conn.Close()
			}
		}
	})
	f.saver.Start()
	ctx := context.Background()

	turn, err := f.chat.PrepareTurn(ctx, "user_1", &models.ChatRequest{Message: "Hello"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, f.chat.StreamTurn(ctx, rec, turn), "mid-stream failures are signalled on the stream, not returned")
	f.saver.Stop()

	body := rec.Body.String()
	assert.Contains(t, body, `"type":"error"`)
	assert.NotContains(t, body, `"type":"done"`)

	stored, err := f.msgs.ListByConversation(ctx, turn.ConversationID)
	require.NoError(t, err)
	assert.Empty(t, stored, "failed streams are never persisted")
}
