// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

// termkeep-admin is the operator CLI for a running termkeep bot. It
// talks to the bot's admin socket and prints results as JSON:
//
//	termkeep-admin --socket /run/termkeep/admin.sock stats
//	termkeep-admin --socket /run/termkeep/admin.sock keys
//	termkeep-admin --socket /run/termkeep/admin.sock export > glossary.json
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/termkeep/termkeep/lib/adminsocket"
	"github.com/termkeep/termkeep/lib/version"
)

// defaultSocketPath matches the admin.socket_path most deployments
// configure. Override with --socket or TERMKEEP_ADMIN_SOCKET.
const defaultSocketPath = "/run/termkeep/admin.sock"

// callTimeout bounds one request-response cycle against the socket.
const callTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		socketPath string
		limit      int
	)

	flagSet := pflag.NewFlagSet("termkeep-admin", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", "", "admin socket path (default: $TERMKEEP_ADMIN_SOCKET or "+defaultSocketPath+")")
	flagSet.IntVar(&limit, "limit", 0, "cap the key list (keys action only; 0 means unlimited)")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match the bot binary.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("termkeep-admin %s\n", version.Info())
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

	args := flagSet.Args()
	if len(args) != 1 {
		printHelp(flagSet)
		return fmt.Errorf("expected exactly one action")
	}
	action := args[0]

	switch action {
	case "stats", "keys", "export":
	default:
		return fmt.Errorf("unknown action %q (expected stats, keys, or export)", action)
	}

	if socketPath == "" {
		socketPath = os.Getenv("TERMKEEP_ADMIN_SOCKET")
	}
	if socketPath == "" {
		socketPath = defaultSocketPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	client := adminsocket.NewClient(socketPath)

	var fields map[string]any
	if action == "keys" && limit > 0 {
		fields = map[string]any{"limit": limit}
	}

	var result any
	if err := client.Call(ctx, action, fields, &result); err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "usage: termkeep-admin [--socket path] <action>\n\n")
	fmt.Fprintf(os.Stderr, "actions:\n")
	fmt.Fprintf(os.Stderr, "  stats   key and value counts, uptime, bot user ID\n")
	fmt.Fprintf(os.Stderr, "  keys    every key with its value count (cap with --limit)\n")
	fmt.Fprintf(os.Stderr, "  export  the full glossary as JSON, including provenance\n\n")
	fmt.Fprintf(os.Stderr, "options:\n%s", flagSet.FlagUsages())
	fmt.Fprintf(os.Stderr, "\nenvironment:\n")
	fmt.Fprintf(os.Stderr, "  TERMKEEP_ADMIN_SOCKET  socket path when --socket is not given\n")
}
