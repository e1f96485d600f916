// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

// tripchat-support is the standalone help widget: a single support
// conversation for signed-out visitors. It mints (or reuses) a
// visitor ID, resolves the visitor's support thread, and opens a
// minimal one-thread chat UI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/wayfare-labs/tripchat/api"
	"github.com/wayfare-labs/tripchat/channel"
	"github.com/wayfare-labs/tripchat/chat"
	"github.com/wayfare-labs/tripchat/lib/config"
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
	var displayName string
	var logOutput string

	flagSet := pflag.NewFlagSet("tripchat-support", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to tripchat.yaml (default: $TRIPCHAT_CONFIG)")
	flagSet.StringVar(&displayName, "name", "", "display name shown to the support team")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("tripchat-support")
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

	logger, closeLog, err := newLogger(logOutput)
	if err != nil {
		return err
	}
	defer closeLog()

	// Anonymous session: no bearer token on either transport.
	client, err := api.NewClient(api.ClientConfig{
		BaseURL: cfg.Server.BaseURL,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	manager, err := channel.NewManager(channel.Config{
		URL:               cfg.ChannelURL(),
		ReconnectAttempts: cfg.Chat.ReconnectAttempts,
		ReconnectBackoff:  cfg.Chat.ReconnectBackoff,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	var program atomic.Pointer[tea.Program]
	controller := chat.NewSupportController(chat.SupportControllerConfig{
		Client:      client,
		Channel:     manager,
		VisitorID:   loadVisitorID(logger),
		DisplayName: displayName,
		PageSize:    cfg.Chat.HistoryPageSize,
		Logger:      logger,
		OnChange: func() {
			if p := program.Load(); p != nil {
				p.Send(tui.SupportChangedMsg{})
			}
		},
	})
	defer manager.Disconnect()

	saveVisitorID(logger, controller.VisitorID())

	model := tui.NewSupportModel(controller, tui.DefaultTheme)
	p := tea.NewProgram(model, tea.WithAltScreen())
	program.Store(p)
	_, err = p.Run()
	return err
}

// visitorIDPath is where the minted visitor ID persists, so the same
// visitor maps to the same support thread across widget opens.
func visitorIDPath() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(cacheDir, "tripchat", "visitor-id")
}

func loadVisitorID(logger *slog.Logger) string {
	path := visitorIDPath()
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	id := strings.TrimSpace(string(data))
	logger.Debug("reusing visitor ID", "visitor_id", id)
	return id
}

func saveVisitorID(logger *slog.Logger, id string) {
	path := visitorIDPath()
	if path == "" || id == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		logger.Warn("cannot persist visitor ID", "error", err)
		return
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		logger.Warn("cannot persist visitor ID", "error", err)
	}
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
	fmt.Fprintf(os.Stderr, `tripchat-support — the Wayfare help widget for your terminal.

Opens (or resumes) your support conversation without an account. A
visitor ID minted on first use keeps the same thread across opens.

Usage:
  tripchat-support [flags]

Flags:
%s`, flagSet.FlagUsages())
}
