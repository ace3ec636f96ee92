package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/fwojciec/relay"
	"google.golang.org/genai"
)

// Pump drains a generate-content stream into sig. Exported for testing.
//
// OnOpen fires with the first chunk and OnClose once the stream is drained.
// An iterator error ends the exchange without OnClose.
func Pump(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error], sig relay.Signals) error {
	opened := false
	for resp, err := range seq {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return ctxErr
			}
			return fmt.Errorf("gemini: %w", err)
		}
		if !opened {
			opened = true
			sig.OnOpen()
		}
		p, ok := toPayload(resp)
		if !ok {
			continue
		}
		sig.OnResponse(ctx, p)
		if p.Error != nil {
			break
		}
	}
	if !opened {
		sig.OnOpen()
	}
	sig.OnClose()
	return nil
}

// toPayload converts one chunk. Thought parts are skipped; a blocked prompt
// or a safety stop becomes an error payload.
func toPayload(resp *genai.GenerateContentResponse) (relay.Payload, bool) {
	if resp == nil {
		return relay.Payload{}, false
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return errorPayload(fmt.Sprintf("prompt blocked: %s", fb.BlockReason)), true
	}
	if len(resp.Candidates) == 0 {
		return relay.Payload{}, false
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return errorPayload("response blocked by safety filters"), true
	}
	if cand.Content == nil {
		return relay.Payload{}, false
	}
	var text strings.Builder
	var files []relay.File
	for _, part := range cand.Content.Parts {
		switch {
		case part == nil, part.Thought:
		case part.InlineData != nil:
			files = append(files, relay.File{
				Data: "data:" + part.InlineData.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(part.InlineData.Data),
				Type: part.InlineData.MIMEType,
			})
		default:
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 && len(files) == 0 {
		return relay.Payload{}, false
	}
	return relay.Payload{Text: text.String(), Files: files, Role: relay.RoleAssistant}, true
}

func errorPayload(msg string) relay.Payload {
	return relay.Payload{Error: relay.NewPayloadError(msg), Role: relay.RoleAssistant}
}
