package relay

import (
	"context"
	"strings"
	"time"

	"github.com/rivo/uniseg"
	"go.uber.org/zap"
)

// simulate reveals a complete payload client-side. Html and files are
// committed at once; text is revealed word by word through a message stream
// bracketed by OnOpen and OnClose. An aborted reveal keeps what was shown.
func (h *Handler) simulate(ctx context.Context, p Payload, n Notifier) {
	role := p.Role.OrDefault()
	if p.HasHTML() || p.HasFiles() {
		h.store.AddNewMessage(Payload{HTML: p.HTML, Files: p.Files, Role: role, SessionID: p.SessionID})
	}
	if p.Text == "" {
		return
	}
	n.OnOpen()
	s := NewMessageStream(h.store, role, h.logger)
	if err := reveal(ctx, s, p.Text, h.cfg.SimulationInterval); err != nil && ctx.Err() == nil {
		h.logger.Error("simulated stream", zap.Error(err))
	}
	n.OnClose()
}

// reveal upserts text into s one word at a time, waiting interval between
// words, and finalizes s on return. It stops early when ctx is done.
func reveal(ctx context.Context, s *MessageStream, text string, interval time.Duration) error {
	defer s.Finalize()
	var tick *time.Ticker
	if interval > 0 {
		tick = time.NewTicker(interval)
		defer tick.Stop()
	}
	for i, chunk := range wordChunks(text) {
		if i > 0 && tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Upsert(Payload{Text: chunk}); err != nil {
			return err
		}
	}
	return nil
}

// wordChunks splits text into words that each carry their trailing
// whitespace and punctuation. Concatenating the chunks yields text.
func wordChunks(text string) []string {
	var (
		chunks  []string
		cur     strings.Builder
		word    string
		state   = -1
		hasWord bool
		spaced  bool
	)
	for text != "" {
		word, text, state = uniseg.FirstWordInString(text, state)
		blank := strings.TrimSpace(word) == ""
		if !blank && hasWord && spaced {
			chunks = append(chunks, cur.String())
			cur.Reset()
			hasWord = false
		}
		cur.WriteString(word)
		if blank {
			spaced = true
		} else {
			hasWord = true
			spaced = false
		}
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
