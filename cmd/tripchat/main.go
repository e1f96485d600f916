// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

// tripchat is the terminal chat client for the Wayfare travel
// platform: a conversation directory, live message timelines, typing
// indicators, and a draft-preserving composer over the backend's
// REST API and websocket event channel.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/wayfare-labs/tripchat/api"
	"github.com/wayfare-labs/tripchat/channel"
	"github.com/wayfare-labs/tripchat/chat"
	"github.com/wayfare-labs/tripchat/lib/config"
	"github.com/wayfare-labs/tripchat/lib/draftstore"
	"github.com/wayfare-labs/tripchat/lib/version"
	"github.com/wayfare-labs/tripchat/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var identity string
	var token string
	var logOutput string

	flagSet := pflag.NewFlagSet("tripchat", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to tripchat.yaml (default: $TRIPCHAT_CONFIG)")
	flagSet.StringVar(&identity, "identity", "", "user ID to sign in as")
	flagSet.StringVar(&token, "token", "", "bearer token (overrides the config file)")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("tripchat")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if token != "" {
		cfg.Server.Token = token
	}
	if identity == "" {
		return fmt.Errorf("--identity is required")
	}

	logger, closeLog, err := newLogger(logOutput)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := api.NewClient(api.ClientConfig{
		BaseURL: cfg.Server.BaseURL,
		Token:   cfg.Server.Token,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	manager, err := channel.NewManager(channel.Config{
		URL:               cfg.ChannelURL(),
		Token:             cfg.Server.Token,
		ReconnectAttempts: cfg.Chat.ReconnectAttempts,
		ReconnectBackoff:  cfg.Chat.ReconnectBackoff,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	var drafts *draftstore.Store
	if cfg.Drafts.Dir != "" {
		drafts, err = draftstore.Open(cfg.Drafts.Dir)
		if err != nil {
			// Drafts are a convenience. Run without persistence
			// rather than refusing to start.
			logger.Warn("draft store unavailable", "dir", cfg.Drafts.Dir, "error", err)
		}
	}

	// The engine's change callback arrives on engine goroutines before
	// the program exists, so it goes through an atomic pointer.
	var program atomic.Pointer[tea.Program]

	session, err := chat.NewSession(chat.SessionConfig{
		Client:          client,
		Channel:         manager,
		Identity:        identity,
		Drafts:          drafts,
		HistoryPageSize: cfg.Chat.HistoryPageSize,
		TypingExpiry:    cfg.Chat.TypingExpiry,
		TypingDebounce:  cfg.Chat.TypingDebounce,
		Logger:          logger,
		OnChange: func() {
			if p := program.Load(); p != nil {
				p.Send(tui.SessionChangedMsg{})
			}
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.Stop()

	model := tui.NewModel(session, tui.DefaultTheme)
	p := tea.NewProgram(model, tea.WithAltScreen())
	program.Store(p)
	_, err = p.Run()
	return err
}

// loadConfig resolves the configuration: an explicit --config path,
// then $TRIPCHAT_CONFIG, then built-in development defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("TRIPCHAT_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// newLogger builds the binary's logger. The TUI owns the terminal, so
// without --log-output the records are discarded.
func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log output: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { file.Close() }, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `tripchat — terminal chat for Wayfare travelers.

Connects to the chat backend configured in tripchat.yaml (via
--config or $TRIPCHAT_CONFIG; built-in development defaults
otherwise) and opens the conversation list.

Usage:
  tripchat --identity <user-id> [flags]

Flags:
%s`, flagSet.FlagUsages())
}
