// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/termkeep/termkeep/lib/adminsocket"
	"github.com/termkeep/termkeep/lib/clock"
	"github.com/termkeep/termkeep/lib/config"
	"github.com/termkeep/termkeep/lib/glossary"
	"github.com/termkeep/termkeep/lib/glossarydb"
	"github.com/termkeep/termkeep/lib/secret"
	"github.com/termkeep/termkeep/lib/version"
	"github.com/termkeep/termkeep/messaging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "config file path (default: $TERMKEEP_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("termkeep-bot %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Read the access token into locked memory. The session keeps its
	// own protected copy, so the file buffer is closed immediately.
	token, err := secret.ReadFromPath(cfg.Matrix.TokenFile)
	if err != nil {
		return fmt.Errorf("reading access token: %w", err)
	}

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Matrix.HomeserverURL,
		Logger:        logger,
	})
	if err != nil {
		token.Close()
		return err
	}

	session, err := client.SessionFromToken(cfg.Matrix.UserID, token.String())
	token.Close()
	if err != nil {
		return err
	}
	defer session.Close()

	userID, err := session.WhoAmI(ctx)
	if err != nil {
		return fmt.Errorf("validating access token: %w", err)
	}
	if userID != cfg.Matrix.UserID {
		return fmt.Errorf("token belongs to %s, config expects %s", userID, cfg.Matrix.UserID)
	}
	logger.Info("matrix session valid", "user_id", userID)

	db, err := glossarydb.Open(glossarydb.Config{
		Path:     cfg.Storage.DatabasePath,
		PoolSize: cfg.Storage.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("opening glossary database: %w", err)
	}
	defer db.Close()

	clk := clock.Real()
	store := glossary.NewStore(db, clk, logger)
	dispatcher := glossary.NewDispatcher(store, logger)
	bot := NewBot(session, dispatcher, logger)

	// Initial /sync builds room membership state before the bot starts
	// answering incremental events.
	sinceToken, err := bot.InitialSync(ctx)
	if err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}

	// Start the admin socket, if configured.
	socketDone := make(chan error, 1)
	if cfg.Admin.SocketPath != "" {
		socketServer := adminsocket.NewServer(cfg.Admin.SocketPath, logger)
		registerAdminActions(socketServer, db, userID, clk.Now(), clk)
		go func() {
			socketDone <- socketServer.Serve(ctx)
		}()
	} else {
		socketDone <- nil
	}

	// Start the incremental sync loop.
	go runSyncLoop(ctx, session, syncConfig{
		Filter: syncFilter,
	}, sinceToken, bot.HandleSync, clk, logger)

	logger.Info("termkeep bot running",
		"user_id", userID,
		"database", cfg.Storage.DatabasePath,
		"admin_socket", cfg.Admin.SocketPath,
	)

	// Wait for shutdown signal.
	<-ctx.Done()
	logger.Info("shutting down")

	// Wait for the admin socket to drain active connections.
	if err := <-socketDone; err != nil {
		logger.Error("admin socket error", "error", err)
	}

	return nil
}

// logLevel maps the config level name to a slog.Level. Validation has
// already rejected unknown names.
func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
