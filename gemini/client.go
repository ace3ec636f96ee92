package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/fwojciec/relay"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ relay.Sender = (*Client)(nil)

// Client sends conversations to the Gemini API.
type Client struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a [Client] authenticated with apiKey.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	c := &Client{
		client: gc,
		model:  defaultModel,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Send streams a completion for body through sig.
func (c *Client) Send(ctx context.Context, body relay.Body, sig relay.Signals) error {
	if sig.Cancel != nil {
		sig.Cancel.OnStop(func(context.Context) bool { return true })
	}
	contents := ConvertMessages(body)
	if len(contents) == 0 {
		return fmt.Errorf("gemini: %w: no messages to send", relay.ErrValidation)
	}
	c.logger.Debug("generate content",
		zap.String("model", c.model),
		zap.Int("contents", len(contents)),
	)
	seq := c.client.Models.GenerateContentStream(ctx, c.model, contents, &genai.GenerateContentConfig{})
	return Pump(ctx, seq, sig)
}

// ConvertMessages converts a request body into Gemini contents. Exported for testing.
//
// Consecutive messages of the same role are merged into one content. Body
// attachments are inlined into the last user content unless that message
// already carries files.
func ConvertMessages(body relay.Body) []*genai.Content {
	var out []*genai.Content
	lastUser := -1
	lastHasFiles := false
	for _, m := range body.Messages {
		role := "user"
		if m.Role == relay.RoleAssistant {
			role = "model"
		}
		var parts []*genai.Part
		if t := strings.TrimSpace(m.Text); t != "" {
			parts = append(parts, &genai.Part{Text: m.Text})
		}
		for _, f := range m.Files {
			if p := convertFile(f); p != nil {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
		} else {
			out = append(out, &genai.Content{Role: role, Parts: parts})
		}
		if role == "user" {
			lastUser = len(out) - 1
			lastHasFiles = len(m.Files) > 0
		}
	}
	if lastUser >= 0 && !lastHasFiles {
		for _, a := range body.Files {
			out[lastUser].Parts = append(out[lastUser].Parts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: mimeType(a.Type), Data: a.Data},
			})
		}
	}
	return out
}

func convertFile(f relay.File) *genai.Part {
	if f.Data != "" {
		typ, data, ok := decodeDataURL(f.Data)
		if !ok {
			return nil
		}
		if typ == "" {
			typ = f.Type
		}
		return &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType(typ), Data: data}}
	}
	if f.URL != "" {
		return &genai.Part{FileData: &genai.FileData{FileURI: f.URL, MIMEType: mimeType(f.Type)}}
	}
	return nil
}

// decodeDataURL parses a base64 "data:" URL.
func decodeDataURL(s string) (string, []byte, bool) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, false
	}
	meta, enc, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, false
	}
	typ, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return typ, []byte(enc), true
	}
	data, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", nil, false
	}
	return typ, data, true
}

func mimeType(t string) string {
	if t == "" {
		return "application/octet-stream"
	}
	return t
}
