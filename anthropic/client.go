package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fwojciec/relay"
	"go.uber.org/zap"
)

// Interface compliance check.
var _ relay.Sender = (*Client)(nil)

// Client implements [relay.Sender] for the Anthropic Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	system     string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// WithSystemPrompt sets the system prompt sent with every request.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) { c.system = prompt }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a new Anthropic [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		maxTokens:  defaultMaxTokens,
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send streams a response for body through sig.
func (c *Client) Send(ctx context.Context, body relay.Body, sig relay.Signals) error {
	if sig.Cancel != nil {
		sig.Cancel.OnStop(func(context.Context) bool { return true })
	}
	msgs := convertMessages(body)
	if len(msgs) == 0 {
		return fmt.Errorf("anthropic: %w: no messages to send", relay.ErrValidation)
	}
	data, err := json.Marshal(apiRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Stream:    true,
		System:    c.system,
		Messages:  msgs,
	})
	if err != nil {
		return fmt.Errorf("anthropic: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("anthropic: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Anthropic-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp)
	}
	return c.pump(ctx, resp.Body, sig)
}

// convertMessages maps the body's history onto alternating user and
// assistant turns. Consecutive messages of one role are merged and body
// attachments join the last user turn.
func convertMessages(body relay.Body) []apiMessage {
	var out []apiMessage
	lastUser := -1
	for _, m := range body.Messages {
		role := "user"
		if m.Role == relay.RoleAssistant {
			role = "assistant"
		}
		var blocks []apiContentBlock
		if strings.TrimSpace(m.Text) != "" {
			blocks = append(blocks, apiContentBlock{Type: "text", Text: m.Text})
		}
		if role == "user" {
			for _, f := range m.Files {
				if b, ok := fileBlock(f); ok {
					blocks = append(blocks, b)
				}
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
		} else {
			out = append(out, apiMessage{Role: role, Content: blocks})
		}
		if role == "user" {
			lastUser = len(out) - 1
		}
	}
	if lastUser >= 0 {
		for _, a := range body.Files {
			if b, ok := attachmentBlock(a); ok {
				out[lastUser].Content = append(out[lastUser].Content, b)
			}
		}
	}
	// The API requires the conversation to open with a user turn.
	for len(out) > 0 && out[0].Role != "user" {
		out = out[1:]
	}
	return out
}

// fileBlock converts a history file. Only images and PDFs are accepted by
// the API.
func fileBlock(f relay.File) (apiContentBlock, bool) {
	kind := blockType(f.Type)
	if kind == "" {
		return apiContentBlock{}, false
	}
	if f.URL != "" {
		return apiContentBlock{Type: kind, Source: &apiSource{Type: "url", URL: f.URL}}, true
	}
	meta, enc, ok := strings.Cut(strings.TrimPrefix(f.Data, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return apiContentBlock{}, false
	}
	return apiContentBlock{Type: kind, Source: &apiSource{Type: "base64", MediaType: f.Type, Data: enc}}, true
}

func attachmentBlock(a relay.Attachment) (apiContentBlock, bool) {
	kind := blockType(a.Type)
	if kind == "" {
		return apiContentBlock{}, false
	}
	return apiContentBlock{Type: kind, Source: &apiSource{
		Type:      "base64",
		MediaType: a.Type,
		Data:      base64.StdEncoding.EncodeToString(a.Data),
	}}, true
}

func blockType(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case mime == "application/pdf":
		return "document"
	default:
		return ""
	}
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("anthropic: HTTP %d (failed to read body: %w)", resp.StatusCode, err)
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return fmt.Errorf("anthropic: %w", &relay.StatusError{Code: resp.StatusCode, Message: string(bytes.TrimSpace(body))})
	}
	return fmt.Errorf("anthropic: %s: %s", apiErr.Error.Type, apiErr.Error.Message)
}
