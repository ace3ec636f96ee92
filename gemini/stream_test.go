package gemini_test

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/gemini"
	"github.com/fwojciec/relay/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// mockChunks returns a genai-style streaming iterator from pre-built chunks.
func mockChunks(chunks []*genai.GenerateContentResponse, tail error) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
		if tail != nil {
			yield(nil, tail)
		}
	}
}

func textChunk(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

type capture struct {
	opened, closed int
	payloads       []relay.Payload
}

func (c *capture) signals() relay.Signals {
	return relay.Signals{
		OnOpen:     func() { c.opened++ },
		OnResponse: func(_ context.Context, p relay.Payload) { c.payloads = append(c.payloads, p) },
		OnClose:    func() { c.closed++ },
	}
}

func TestPump_TextChunks(t *testing.T) {
	t.Parallel()
	var c capture
	err := gemini.Pump(context.Background(), mockChunks([]*genai.GenerateContentResponse{
		textChunk(&genai.Part{Text: "Hello"}),
		textChunk(&genai.Part{Text: " world"}),
	}, nil), c.signals())
	require.NoError(t, err)
	assert.Equal(t, 1, c.opened)
	assert.Equal(t, 1, c.closed)
	require.Len(t, c.payloads, 2)
	assert.Equal(t, "Hello", c.payloads[0].Text)
	assert.Equal(t, relay.RoleAssistant, c.payloads[1].Role)
}

func TestPump_SkipsThoughts(t *testing.T) {
	t.Parallel()
	var c capture
	err := gemini.Pump(context.Background(), mockChunks([]*genai.GenerateContentResponse{
		textChunk(&genai.Part{Text: "pondering", Thought: true}),
		textChunk(&genai.Part{Text: "pondering", Thought: true}, &genai.Part{Text: "Answer"}),
	}, nil), c.signals())
	require.NoError(t, err)
	require.Len(t, c.payloads, 1)
	assert.Equal(t, "Answer", c.payloads[0].Text)
}

func TestPump_InlineDataBecomesFile(t *testing.T) {
	t.Parallel()
	var c capture
	err := gemini.Pump(context.Background(), mockChunks([]*genai.GenerateContentResponse{
		textChunk(&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("hi")}}),
	}, nil), c.signals())
	require.NoError(t, err)
	require.Len(t, c.payloads, 1)
	require.Len(t, c.payloads[0].Files, 1)
	assert.Equal(t, "data:image/png;base64,aGk=", c.payloads[0].Files[0].Data)
}

func TestPump_SafetyStop(t *testing.T) {
	t.Parallel()
	var c capture
	err := gemini.Pump(context.Background(), mockChunks([]*genai.GenerateContentResponse{
		textChunk(&genai.Part{Text: "partial"}),
		{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}},
		textChunk(&genai.Part{Text: "never"}),
	}, nil), c.signals())
	require.NoError(t, err)
	require.Len(t, c.payloads, 2)
	require.NotNil(t, c.payloads[1].Error)
	assert.Contains(t, c.payloads[1].Error.Message(), "safety")
	assert.Equal(t, 1, c.closed)
}

func TestPump_PromptBlocked(t *testing.T) {
	t.Parallel()
	var c capture
	err := gemini.Pump(context.Background(), mockChunks([]*genai.GenerateContentResponse{
		{PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety}},
	}, nil), c.signals())
	require.NoError(t, err)
	require.Len(t, c.payloads, 1)
	require.NotNil(t, c.payloads[0].Error)
	assert.Contains(t, c.payloads[0].Error.Message(), "prompt blocked")
}

func TestPump_IteratorError(t *testing.T) {
	t.Parallel()
	var c capture
	err := gemini.Pump(context.Background(), mockChunks([]*genai.GenerateContentResponse{
		textChunk(&genai.Part{Text: "Hel"}),
	}, errors.New("quota exceeded")), c.signals())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini: quota exceeded")
	assert.Equal(t, 1, c.opened)
	assert.Equal(t, 0, c.closed)
}

func TestPump_CanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var c capture
	err := gemini.Pump(ctx, mockChunks(nil, context.Canceled), c.signals())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.payloads)
}

func TestPump_EmptyStreamOpensAndCloses(t *testing.T) {
	t.Parallel()
	var c capture
	require.NoError(t, gemini.Pump(context.Background(), mockChunks(nil, nil), c.signals()))
	assert.Equal(t, 1, c.opened)
	assert.Equal(t, 1, c.closed)
}

func TestPump_ThroughHandler(t *testing.T) {
	t.Parallel()
	sender := relay.SenderFunc(func(ctx context.Context, _ relay.Body, sig relay.Signals) error {
		return gemini.Pump(ctx, mockChunks([]*genai.GenerateContentResponse{
			textChunk(&genai.Part{Text: "Hel"}),
			textChunk(&genai.Part{Text: "lo"}),
		}, nil), sig)
	})
	store := memory.New()
	h := relay.NewHandler(relay.StreamTransport{Sender: sender}, store, relay.DefaultConfig())
	require.NoError(t, relay.NewSubmitter(h).Submit(context.Background(), relay.Request{Text: "greet"}))

	msgs := store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[1].Text)
	assert.False(t, msgs[1].Streaming)
}
