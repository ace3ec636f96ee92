package anthropic_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/anthropic"
	"github.com/fwojciec/relay/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseResponse is a helper to build SSE responses for tests.
type sseResponse struct {
	events []sseEvent
}

type sseEvent struct {
	event string
	data  string
}

func (s sseResponse) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, evt := range s.events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.event, evt.data)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func textDelta(text string) sseEvent {
	return sseEvent{"content_block_delta", fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}`, text)}
}

var (
	messageStart = sseEvent{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-20250514","stop_reason":null,"usage":{"input_tokens":10,"output_tokens":1}}}`}
	blockStart   = sseEvent{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`}
	ping         = sseEvent{"ping", `{"type":"ping"}`}
	blockStop    = sseEvent{"content_block_stop", `{"type":"content_block_stop","index":0}`}
	endTurn      = sseEvent{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":5}}`}
	messageStop  = sseEvent{"message_stop", `{"type":"message_stop"}`}
)

// capture records the signals of one exchange.
type capture struct {
	mu       sync.Mutex
	opened   int
	closed   int
	payloads []relay.Payload
}

func (c *capture) signals() relay.Signals {
	return relay.Signals{
		OnOpen: func() { c.mu.Lock(); c.opened++; c.mu.Unlock() },
		OnResponse: func(_ context.Context, p relay.Payload) {
			c.mu.Lock()
			c.payloads = append(c.payloads, p)
			c.mu.Unlock()
		},
		OnClose: func() { c.mu.Lock(); c.closed++; c.mu.Unlock() },
	}
}

func send(t *testing.T, h http.Handler, body relay.Body, opts ...anthropic.Option) (*capture, error) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client := anthropic.New("test-key", append([]anthropic.Option{anthropic.WithBaseURL(srv.URL)}, opts...)...)
	var c capture
	err := client.Send(context.Background(), body, c.signals())
	return &c, err
}

var hello = relay.Body{Messages: []relay.Payload{{Text: "Hi", Role: relay.RoleUser}}}

func TestClient_TextStream(t *testing.T) {
	t.Parallel()
	c, err := send(t, sseResponse{events: []sseEvent{
		messageStart, blockStart, ping, textDelta("Hello"), textDelta(" world"), blockStop, endTurn, messageStop,
	}}.handler(), hello)
	require.NoError(t, err)
	assert.Equal(t, 1, c.opened)
	assert.Equal(t, 1, c.closed)
	require.Len(t, c.payloads, 2)
	assert.Equal(t, "Hello", c.payloads[0].Text)
	assert.Equal(t, " world", c.payloads[1].Text)
}

func TestClient_SkipsThinkingDeltas(t *testing.T) {
	t.Parallel()
	c, err := send(t, sseResponse{events: []sseEvent{
		messageStart,
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"hmm"}}`},
		textDelta("Answer"),
		messageStop,
	}}.handler(), hello)
	require.NoError(t, err)
	require.Len(t, c.payloads, 1)
	assert.Equal(t, "Answer", c.payloads[0].Text)
}

func TestClient_ErrorEvent(t *testing.T) {
	t.Parallel()
	c, err := send(t, sseResponse{events: []sseEvent{
		messageStart,
		textDelta("part"),
		{"error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`},
	}}.handler(), hello)
	require.NoError(t, err)
	require.Len(t, c.payloads, 2)
	require.NotNil(t, c.payloads[1].Error)
	assert.Equal(t, "Overloaded", c.payloads[1].Error.Message())
	assert.Equal(t, 1, c.closed)
}

func TestClient_Refusal(t *testing.T) {
	t.Parallel()
	c, err := send(t, sseResponse{events: []sseEvent{
		messageStart,
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"refusal"}}`},
		messageStop,
	}}.handler(), hello)
	require.NoError(t, err)
	require.Len(t, c.payloads, 1)
	assert.NotNil(t, c.payloads[0].Error)
}

func TestClient_UnexpectedEOF(t *testing.T) {
	t.Parallel()
	c, err := send(t, sseResponse{events: []sseEvent{messageStart, textDelta("Hel")}}.handler(), hello)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected end of stream")
	assert.Equal(t, 0, c.closed)
}

func TestClient_HTTPError(t *testing.T) {
	t.Parallel()

	t.Run("api error body", func(t *testing.T) {
		t.Parallel()
		_, err := send(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
		}), hello)
		require.Error(t, err)
		assert.Equal(t, "anthropic: authentication_error: invalid x-api-key", err.Error())
	})

	t.Run("plain body", func(t *testing.T) {
		t.Parallel()
		_, err := send(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}), hello)
		require.Error(t, err)
		assert.Equal(t, "anthropic: HTTP 502: bad gateway", err.Error())
	})
}

func TestClient_NoMessages(t *testing.T) {
	t.Parallel()
	err := anthropic.New("k").Send(context.Background(), relay.Body{}, relay.Signals{})
	require.ErrorIs(t, err, relay.ErrValidation)
}

func TestClient_RequestFormat(t *testing.T) {
	t.Parallel()

	var (
		got     map[string]any
		headers http.Header
	)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got)
		sseResponse{events: []sseEvent{messageStart, messageStop}}.handler()(w, r)
	})
	body := relay.Body{
		Messages: []relay.Payload{
			{Text: "earlier reply", Role: relay.RoleAssistant},
			{Text: "first", Role: relay.RoleUser},
			{Text: "second", Role: relay.RoleUser},
			{Text: "answer", Role: relay.RoleAssistant},
			{Text: "look", Role: relay.RoleUser},
		},
		Files: []relay.Attachment{
			{Name: "a.png", Type: "image/png", Data: []byte("hi")},
			{Name: "notes.txt", Type: "text/plain", Data: []byte("skip")},
		},
	}
	_, err := send(t, h, body, anthropic.WithModel("claude-test"), anthropic.WithSystemPrompt("be brief"), anthropic.WithMaxTokens(64))
	require.NoError(t, err)

	assert.Equal(t, "test-key", headers.Get("X-Api-Key"))
	assert.NotEmpty(t, headers.Get("Anthropic-Version"))
	assert.Equal(t, "claude-test", got["model"])
	assert.Equal(t, "be brief", got["system"])
	assert.InDelta(t, 64, got["max_tokens"], 0)
	assert.Equal(t, true, got["stream"])

	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 3, "leading assistant turn dropped, user turns merged")
	first := msgs[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Len(t, first["content"], 2)

	last := msgs[2].(map[string]any)["content"].([]any)
	require.Len(t, last, 2, "text attachment is not sent")
	img := last[1].(map[string]any)
	assert.Equal(t, "image", img["type"])
	src := img["source"].(map[string]any)
	assert.Equal(t, "base64", src["type"])
	assert.Equal(t, "image/png", src["media_type"])
	assert.Equal(t, "aGk=", src["data"])
}

func TestClient_ThroughHandler(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(sseResponse{events: []sseEvent{
		messageStart, textDelta("Hel"), textDelta("lo"), messageStop,
	}}.handler())
	t.Cleanup(srv.Close)

	store := memory.New()
	h := relay.NewHandler(relay.StreamTransport{Sender: anthropic.New("k", anthropic.WithBaseURL(srv.URL))}, store, relay.DefaultConfig())
	require.NoError(t, relay.NewSubmitter(h).Submit(context.Background(), relay.Request{Text: "greet"}))

	msgs := store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[1].Text)
}
