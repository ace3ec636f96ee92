package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/sse"
	"go.uber.org/zap"
)

// pump reads stream events from body until message_stop. Text deltas
// become payloads; thinking and tool deltas are not shown. A stream that
// ends without message_stop is a transport failure.
func (c *Client) pump(ctx context.Context, body io.Reader, sig relay.Signals) error {
	sig.OnOpen()
	r := sse.NewReader(body)
	for {
		evt, err := r.Next()
		if errors.Is(err, io.EOF) {
			return errors.New("anthropic: unexpected end of stream")
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("anthropic: %w", err)
		}

		switch evt.Name {
		case "content_block_delta":
			var d sseContentBlockDelta
			if err := json.Unmarshal([]byte(evt.Data), &d); err != nil {
				return fmt.Errorf("anthropic: decode %s: %w", evt.Name, err)
			}
			if d.Delta.Type == "text_delta" && d.Delta.Text != "" {
				sig.OnResponse(ctx, relay.Payload{Text: d.Delta.Text, Role: relay.RoleAssistant})
			}

		case "message_delta":
			var d sseMessageDelta
			if err := json.Unmarshal([]byte(evt.Data), &d); err != nil {
				return fmt.Errorf("anthropic: decode %s: %w", evt.Name, err)
			}
			if d.Delta.StopReason != nil {
				c.logger.Debug("message stopped", zap.String("reason", *d.Delta.StopReason))
				if *d.Delta.StopReason == "refusal" {
					sig.OnResponse(ctx, relay.Payload{
						Error: relay.NewPayloadError("the model declined to respond"),
						Role:  relay.RoleAssistant,
					})
				}
			}

		case "error":
			var e sseError
			msg := evt.Data
			if err := json.Unmarshal([]byte(evt.Data), &e); err == nil && e.Error.Message != "" {
				msg = e.Error.Message
			}
			sig.OnResponse(ctx, relay.Payload{Error: relay.NewPayloadError(msg), Role: relay.RoleAssistant})
			sig.OnClose()
			return nil

		case "message_stop":
			sig.OnClose()
			return nil
		}
		// message_start, content_block_start/stop and ping carry nothing to show.
	}
}
