package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/anthropic"
	"github.com/fwojciec/relay/config"
	"github.com/fwojciec/relay/gemini"
	"github.com/fwojciec/relay/rest"
	"github.com/fwojciec/relay/sse"
	"github.com/fwojciec/relay/websocket"
	"go.uber.org/zap"
)

// resolveTransport builds the transport named by the service section.
func resolveTransport(ctx context.Context, cfg *config.File, logger *zap.Logger) (relay.Transport, error) {
	svc := cfg.Service
	switch svc.Kind {
	case config.KindREST:
		opts := []rest.Option{rest.WithLogger(logger.Named("rest"))}
		for k, v := range svc.Headers {
			opts = append(opts, rest.WithHeader(k, v))
		}
		for _, r := range svc.Routes {
			opts = append(opts, rest.WithRoute(r.Pattern, r.URL))
		}
		return relay.PlainTransport{Sender: rest.New(svc.URL, opts...)}, nil

	case config.KindSSE:
		opts := []sse.Option{sse.WithLogger(logger.Named("sse"))}
		for k, v := range svc.Headers {
			opts = append(opts, sse.WithHeader(k, v))
		}
		return relay.StreamTransport{Sender: sse.New(svc.URL, opts...)}, nil

	case config.KindWebSocket:
		opts := []websocket.Option{websocket.WithLogger(logger.Named("websocket"))}
		for k, v := range svc.Headers {
			opts = append(opts, websocket.WithHeader(k, v))
		}
		return relay.DuplexTransport{Connector: websocket.New(svc.URL, opts...)}, nil

	case config.KindGemini:
		if cfg.Gemini.APIKey == "" {
			return nil, errors.New("GEMINI_API_KEY not set (use [gemini] api_key or the environment variable)")
		}
		opts := []gemini.Option{gemini.WithLogger(logger.Named("gemini"))}
		if cfg.Gemini.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Gemini.Model))
		}
		client, err := gemini.New(ctx, cfg.Gemini.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		return relay.StreamTransport{Sender: client}, nil

	case config.KindAnthropic:
		a := cfg.Anthropic
		if a.APIKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY not set (use [anthropic] api_key or the environment variable)")
		}
		opts := []anthropic.Option{anthropic.WithLogger(logger.Named("anthropic"))}
		if a.Model != "" {
			opts = append(opts, anthropic.WithModel(a.Model))
		}
		if a.MaxTokens > 0 {
			opts = append(opts, anthropic.WithMaxTokens(a.MaxTokens))
		}
		if a.SystemPrompt != "" {
			opts = append(opts, anthropic.WithSystemPrompt(a.SystemPrompt))
		}
		return relay.StreamTransport{Sender: anthropic.New(a.APIKey, opts...)}, nil

	default:
		return nil, fmt.Errorf("unknown service kind %q", svc.Kind)
	}
}
