// Command relay is a terminal chat client for conversational services.
//
// Usage:
//
//	relay [chat]              interactive TUI
//	relay send <text...>      one exchange, rendered to stdout
//	relay config              print the effective configuration
//	relay version
//
// Settings come from $RELAY_CONFIG (default ~/.relay/config.toml) and
// RELAY_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fwojciec/relay"
	bt "github.com/fwojciec/relay/bubbletea"
	"github.com/fwojciec/relay/config"
	"github.com/fwojciec/relay/goldmark"
	"github.com/fwojciec/relay/memory"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// reconnectDelay is the pause between duplex connection attempts.
const reconnectDelay = 2 * time.Second

type options struct {
	configPath  string
	sessionPath string
	verbose     bool
	attachments []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "relay",
		Short:         "Terminal chat client for conversational services",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.Path(), "path to the configuration file")
	root.PersistentFlags().StringVar(&opts.sessionPath, "session", "", "session file to resume and save")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	chat := &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), opts)
		},
	}
	send := &cobra.Command{
		Use:   "send <text...>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), cmd.OutOrStdout(), opts, strings.Join(args, " "))
		},
	}
	send.Flags().StringArrayVarP(&opts.attachments, "attach", "a", nil, "file to attach (repeatable)")

	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath, nil)
			if err != nil {
				return err
			}
			return cfg.Encode(cmd.OutOrStdout())
		},
	}
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
	root.AddCommand(chat, send, cfgCmd, versionCmd)
	return root
}

// client is the wired conversation: store, handler and submitter.
type client struct {
	cfg       *config.File
	logger    *zap.Logger
	store     *memory.Store
	handler   *relay.Handler
	submitter *relay.Submitter
}

func newClient(ctx context.Context, opts *options, logPath string, onChange func()) (*client, error) {
	cfg, err := config.Load(opts.configPath, nil)
	if err != nil {
		return nil, err
	}
	if cfg.Logging.File != "" {
		logPath = cfg.Logging.File
	}
	logger, err := newLogger(cfg.Logging.Level, logPath, opts.verbose)
	if err != nil {
		return nil, err
	}
	store, err := openStore(opts.sessionPath, onChange)
	if err != nil {
		return nil, err
	}
	t, err := resolveTransport(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	h := relay.NewHandler(t, store, cfg.Relay(), relay.WithLogger(logger))
	var subOpts []relay.SubmitOption
	subOpts = append(subOpts, relay.WithSessionID(store.Session().ID))
	if onChange != nil {
		subOpts = append(subOpts, relay.WithStateObserver(func(relay.SubmitState) { onChange() }))
	}
	return &client{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		handler:   h,
		submitter: relay.NewSubmitter(h, subOpts...),
	}, nil
}

// connect keeps a duplex channel up until ctx is done. Other transports
// need no connection.
func (c *client) connect(ctx context.Context) {
	if c.handler.Kind() != relay.TransportDuplex {
		return
	}
	go func() {
		for {
			err := c.handler.Connect(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				c.logger.Warn("duplex channel failed", zap.Error(err))
			} else {
				c.logger.Info("duplex channel closed")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()
}

func (c *client) save(path string) (string, error) {
	return saveStore(c.store, path, c.cfg.Session.Dir)
}

func runChat(ctx context.Context, opts *options) error {
	changes := bt.NewChanges()
	logPath := filepath.Join(config.StateDir(), "relay.log")
	c, err := newClient(ctx, opts, logPath, changes.Notify)
	if err != nil {
		return err
	}
	defer func() { _ = c.logger.Sync() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.connect(ctx)

	m := bt.New(c.submitter, c.store.Messages, changes, relay.DefaultTheme())
	if err := bt.Run(ctx, m); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}
	path, err := c.save(opts.sessionPath)
	if err != nil {
		return err
	}
	if path != "" && opts.sessionPath == "" {
		fmt.Fprintf(os.Stderr, "Session saved to %s\n", path)
	}
	return nil
}

func runSend(ctx context.Context, out io.Writer, opts *options, text string) error {
	changes := make(chan struct{}, 1)
	notify := func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}
	c, err := newClient(ctx, opts, "", notify)
	if err != nil {
		return err
	}
	defer func() { _ = c.logger.Sync() }()

	files, err := readAttachments(opts.attachments)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.connect(ctx)

	before := len(c.store.Messages())
	if c.handler.Kind() == relay.TransportDuplex {
		if err := waitFor(ctx, changes, 10*time.Second, c.handler.Open); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	}
	if err := c.submitter.Submit(ctx, relay.Request{Text: text, Files: files}); err != nil {
		return err
	}
	if c.handler.Kind() == relay.TransportDuplex {
		// Replies arrive on the channel after Submit returns.
		replied := func() bool { return hasReply(c.store.Messages()[before:]) }
		if err := waitFor(ctx, changes, time.Minute, replied); err != nil {
			return fmt.Errorf("wait for reply: %w", err)
		}
	}

	var failed bool
	for _, m := range c.store.Messages()[before:] {
		if m.Role == relay.RoleUser && !m.Error {
			continue
		}
		failed = failed || m.Error
		fmt.Fprintln(out, goldmark.RenderMessage(m, 0, relay.DefaultTheme()))
	}
	if _, err := c.save(opts.sessionPath); err != nil {
		return err
	}
	if failed {
		return errors.New("exchange failed")
	}
	return nil
}

// hasReply reports whether msgs hold a committed non-user message.
func hasReply(msgs []relay.Message) bool {
	for _, m := range msgs {
		if !m.Streaming && (m.Error || m.Role != relay.RoleUser) {
			return true
		}
	}
	return false
}

// waitFor polls cond on every change until it holds or timeout passes.
func waitFor(ctx context.Context, changes <-chan struct{}, timeout time.Duration, cond func() bool) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("timed out after %s", timeout)
		case <-changes:
		case <-tick.C:
		}
	}
	return nil
}
