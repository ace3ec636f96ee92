package relay_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connectDuplex connects a handler through a connector that hands its
// signals back to the test.
func connectDuplex(t *testing.T, cfg relay.Config) (*recorder, *relay.Handler, relay.DuplexSignals) {
	t.Helper()
	rec, store := newRecorder()
	var sig relay.DuplexSignals
	conn := &mock.Connector{
		ConnectFn: func(ctx context.Context, s relay.DuplexSignals) error {
			sig = s
			return nil
		},
	}
	h := relay.NewHandler(relay.DuplexTransport{Connector: conn}, store, cfg)
	require.NoError(t, h.Connect(context.Background()))
	return rec, h, sig
}

func TestDuplex_DuplicateErrorsSuppressed(t *testing.T) {
	t.Parallel()
	cfg := relay.DefaultConfig()
	cfg.DisplayServiceErrors = true
	rec, _, sig := connectDuplex(t, cfg)
	ctx := context.Background()

	sig.OnOpen()
	sig.OnResponse(ctx, relay.Payload{Error: relay.NewPayloadError("first")})
	sig.OnResponse(ctx, relay.Payload{Error: relay.NewPayloadError("second")})
	assert.Equal(t, []string{"first"}, rec.Errors())

	sig.OnClose()
	sig.OnOpen()
	sig.OnResponse(ctx, relay.Payload{Error: relay.NewPayloadError("third")})
	assert.Equal(t, []string{"first", "third"}, rec.Errors())
	assert.Equal(t, []string{"remove-error", "error:first", "remove-error", "error:third"}, rec.Ops())
}

func TestDuplex_ClosedChannelDropsPayloads(t *testing.T) {
	t.Parallel()
	rec, h, sig := connectDuplex(t, relay.DefaultConfig())
	ctx := context.Background()

	sig.OnResponse(ctx, relay.Payload{Text: "before open"})
	assert.False(t, h.Open())
	sig.OnOpen()
	assert.True(t, h.Open())
	sig.OnResponse(ctx, relay.Payload{Text: "hello"})
	sig.OnClose()
	sig.OnResponse(ctx, relay.Payload{Text: "after close"})

	assert.Equal(t, []string{"remove-error", "add:hello"}, rec.Ops())
	assert.Equal(t, relay.RoleAssistant, rec.Committed()[0].Role)
}

func TestDuplex_InvalidPayload(t *testing.T) {
	t.Parallel()
	rec, _, sig := connectDuplex(t, relay.DefaultConfig())
	sig.OnOpen()
	sig.OnResponse(context.Background(), relay.Payload{})
	sig.OnResponse(context.Background(), relay.Payload{})
	assert.Equal(t, []string{relay.GenericErrorText}, rec.Errors())
}

func TestDuplex_EndMarkerStreaming(t *testing.T) {
	t.Parallel()
	cfg := instant(relay.DefaultConfig())
	cfg.Simulate = true
	cfg.StreamEndMarker = "[END]"
	rec, _, sig := connectDuplex(t, cfg)
	ctx := context.Background()

	sig.OnOpen()
	sig.OnResponse(ctx, relay.Payload{Text: "Hi "})
	sig.OnResponse(ctx, relay.Payload{Text: "there", Role: relay.RoleAssistant})
	sig.OnResponse(ctx, relay.Payload{Text: "note", Role: "system"})
	sig.OnResponse(ctx, relay.Payload{Text: "[END]"})
	sig.OnResponse(ctx, relay.Payload{Text: "Next"})
	sig.OnResponse(ctx, relay.Payload{HTML: "[END]"})

	assert.Equal(t, []string{
		"remove-error",
		"update:Hi ",
		"update:Hi there",
		"update:note",
		"finalize:Hi there",
		"update:Next",
		"finalize:Next",
	}, rec.Ops())
}

func TestDuplex_ServiceErrorReleasesStream(t *testing.T) {
	t.Parallel()

	t.Run("discard", func(t *testing.T) {
		t.Parallel()
		cfg := instant(relay.DefaultConfig())
		cfg.Simulate = true
		cfg.StreamEndMarker = "[END]"
		rec, _, sig := connectDuplex(t, cfg)
		ctx := context.Background()

		sig.OnOpen()
		sig.OnResponse(ctx, relay.Payload{Text: "Partial answer "})
		sig.OnResponse(ctx, relay.Payload{Error: relay.NewPayloadError("boom")})
		sig.OnResponse(ctx, relay.Payload{Text: "Fresh reply"})
		sig.OnResponse(ctx, relay.Payload{Text: "[END]"})

		assert.Equal(t, []string{
			"remove-error",
			"update:Partial answer ",
			"discard",
			"error:" + relay.ServiceErrorText,
			"update:Fresh reply",
			"finalize:Fresh reply",
		}, rec.Ops())
		require.Len(t, rec.Committed(), 1)
		assert.Equal(t, "Fresh reply", rec.Committed()[0].Text)
	})

	t.Run("keep", func(t *testing.T) {
		t.Parallel()
		cfg := instant(relay.DefaultConfig())
		cfg.Simulate = true
		cfg.StreamEndMarker = "[END]"
		cfg.PartialOnError = relay.PartialKeep
		rec, _, sig := connectDuplex(t, cfg)
		ctx := context.Background()

		sig.OnOpen()
		sig.OnResponse(ctx, relay.Payload{Text: "Partial answer "})
		sig.OnResponse(ctx, relay.Payload{Error: relay.NewPayloadError("boom")})
		sig.OnResponse(ctx, relay.Payload{Text: "Fresh reply"})
		sig.OnResponse(ctx, relay.Payload{Text: "[END]"})

		committed := rec.Committed()
		require.Len(t, committed, 2)
		assert.Equal(t, "Partial answer ", committed[0].Text)
		assert.Equal(t, "Fresh reply", committed[1].Text)
	})
}

func TestDuplex_StreamSurvivesReconnect(t *testing.T) {
	t.Parallel()
	cfg := instant(relay.DefaultConfig())
	cfg.Simulate = true
	cfg.StreamEndMarker = "[END]"
	rec, _, sig := connectDuplex(t, cfg)
	ctx := context.Background()

	sig.OnOpen()
	sig.OnResponse(ctx, relay.Payload{Text: "Hel"})
	sig.OnClose()
	sig.OnOpen()
	sig.OnResponse(ctx, relay.Payload{Text: "lo"})
	sig.OnResponse(ctx, relay.Payload{Text: "[END]"})

	require.Len(t, rec.Committed(), 1)
	assert.Equal(t, "Hello", rec.Committed()[0].Text)
}

func TestDuplex_ClientSideReveal(t *testing.T) {
	t.Parallel()
	cfg := instant(relay.DefaultConfig())
	cfg.Simulate = true
	rec, _, sig := connectDuplex(t, cfg)

	sig.OnOpen()
	sig.OnResponse(context.Background(), relay.Payload{Text: "two words"})

	assert.Equal(t, []string{"remove-error", "update:two ", "update:two words", "finalize:two words"}, rec.Ops())
}

func TestDuplex_Forward(t *testing.T) {
	t.Parallel()

	t.Run("closed channel", func(t *testing.T) {
		t.Parallel()
		_, h, _ := connectDuplex(t, relay.DefaultConfig())
		assert.ErrorIs(t, h.Forward(context.Background(), relay.Body{}), relay.ErrChannelClosed)
	})

	t.Run("open channel without listener", func(t *testing.T) {
		t.Parallel()
		_, h, sig := connectDuplex(t, relay.DefaultConfig())
		sig.OnOpen()
		assert.ErrorIs(t, h.Forward(context.Background(), relay.Body{}), relay.ErrChannelClosed)
	})

	t.Run("delivers to listener", func(t *testing.T) {
		t.Parallel()
		_, h, sig := connectDuplex(t, relay.DefaultConfig())
		var got relay.Body
		sig.Listen(func(ctx context.Context, body relay.Body) error {
			got = body
			return nil
		})
		sig.OnOpen()
		body := relay.Body{Messages: []relay.Payload{{Text: "hi", Role: relay.RoleUser}}}
		require.NoError(t, h.Forward(context.Background(), body))
		assert.Equal(t, body, got)
	})

	t.Run("listener error", func(t *testing.T) {
		t.Parallel()
		_, h, sig := connectDuplex(t, relay.DefaultConfig())
		wantErr := errors.New("write: broken pipe")
		sig.Listen(func(ctx context.Context, body relay.Body) error { return wantErr })
		sig.OnOpen()
		assert.ErrorIs(t, h.Forward(context.Background(), relay.Body{}), wantErr)
	})
}

func TestDuplex_ConnectError(t *testing.T) {
	t.Parallel()
	_, store := newRecorder()
	wantErr := errors.New("dial failed")
	conn := &mock.Connector{
		ConnectFn: func(ctx context.Context, sig relay.DuplexSignals) error { return wantErr },
	}
	h := relay.NewHandler(relay.DuplexTransport{Connector: conn}, store, relay.DefaultConfig())
	assert.ErrorIs(t, h.Connect(context.Background()), wantErr)
}
