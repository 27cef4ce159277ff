// VodaCare support chat - HTTP server binary.
//
// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vodacare/support-chat/internal/agent"
	"github.com/vodacare/support-chat/internal/config"
	"github.com/vodacare/support-chat/internal/llm"
	"github.com/vodacare/support-chat/internal/server"
	"github.com/vodacare/support-chat/internal/session"
	"github.com/vodacare/support-chat/internal/storage"
)

// janitorInterval is how often expired sessions are swept.
const janitorInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence is optional: a failed open degrades to acknowledge-only
	// endpoints rather than refusing to start.
	var store *storage.Store
	if cfg.Storage.Path != "" {
		store, err = storage.Open(cfg.Storage.Path)
		if err != nil {
			log.Printf("STORAGE_DISABLED | path=%s error=%v", cfg.Storage.Path, err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	sessions := session.NewMemoryStore(time.Duration(cfg.Sessions.TTLMinutes) * time.Minute)
	sessions.StartJanitor(ctx, janitorInterval)

	client := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
	ag := agent.New(agent.Config{
		Provider:    cfg.Provider,
		Mode:        agent.Mode(cfg.Mode),
		Client:      client,
		Sessions:    sessions,
		LiveTimeout: time.Duration(cfg.Server.StreamTimeoutSecs) * time.Second,
	})

	srv := server.New(cfg, ag, sessions, store)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Printf("SHUTDOWN_ERROR | error=%v", err)
		}
	}
}
