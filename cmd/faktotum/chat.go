// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/nwiesmann/faktotum/pkg/agent"
	"github.com/nwiesmann/faktotum/pkg/memory"
)

const historyWindow = 20

// runChat starts an interactive session. Every line is routed through
// @mention resolution, so the agent can change mid-conversation; lines
// without a mention go to the default agent. History is kept per
// session ID and replayed into every turn, truncated to the most
// recent messages.
func runChat(ctx context.Context, a *app, args []string) {
	cmd := flag.NewFlagSet("chat", flag.ContinueOnError)
	agentFlag := cmd.String("agent", "", "Agent name or alias")
	sessionFlag := cmd.String("session", "", "Session ID to resume")
	project := cmd.String("project", "", "Project ID for knowledge base scoping")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	ensureNoArgs(cmd.Args())

	defaultName := a.defaultAgent()
	if *agentFlag != "" {
		defaultName = a.resolveAlias(*agentFlag)
		if defaultName == "" {
			fatal(fmt.Errorf("unknown agent %q (available: %s)", *agentFlag, strings.Join(a.agentNames(), ", ")))
		}
	}

	sessions := make(map[string]*agent.Session)
	sessionFor := func(name string) (*agent.Session, error) {
		if s, ok := sessions[name]; ok {
			return s, nil
		}
		s, err := a.session(name, *project)
		if err != nil {
			return nil, err
		}
		sessions[name] = s
		return s, nil
	}

	defaultSession, err := sessionFor(defaultName)
	if err != nil {
		fatal(err)
	}

	store, err := openConversationStore(ctx, a)
	if err != nil {
		fatal(err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() { _ = closer.Close() }()
	}

	sessionID := *sessionFlag
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	if interactive {
		fmt.Printf("Chat mit %s (Session %s)\n", defaultSession.DisplayName(), sessionID)
		fmt.Println("Befehle: exit, clear, help. @agent wechselt den Agenten für eine Nachricht.")
	}

	window := memory.WindowStrategy{MaxMessages: historyWindow, KeepSystemMessages: true}
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "exit", "quit":
			return
		case "clear":
			if err := store.Clear(ctx, sessionID); err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			fmt.Println("Verlauf gelöscht.")
			continue
		case "help":
			fmt.Println("exit/quit beendet, clear löscht den Verlauf.")
			continue
		}

		name, message := a.routeMessage(line, defaultName)
		session, err := sessionFor(name)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}

		answer, err := chatTurn(ctx, a, session, store, window, sessionID, message)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Fprintln(os.Stderr, err)
			continue
		}

		if interactive {
			fmt.Printf("[%s] %s\n", session.DisplayName(), answer)
		} else {
			fmt.Println(answer)
		}
	}
	if err := scanner.Err(); err != nil {
		fatal(err)
	}
}

type chatRunner interface {
	Run(ctx context.Context, query string) (string, error)
}

func chatTurn(ctx context.Context, a *app, session chatRunner, store memory.ConversationStore, window memory.WindowStrategy, sessionID, input string) (string, error) {
	history, err := store.Messages(ctx, sessionID)
	if err != nil {
		return "", err
	}
	history = window.Truncate(history)

	query := input
	if len(history) > 0 {
		query = historyBlock(history) + "\n\nAktuelle Nachricht:\n" + input
	}

	if err := store.AppendMessage(ctx, sessionID, memory.ConversationMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      "user",
		Content:   input,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		a.logger.Warn("chat.history.append_failed", "error", err)
	}

	answer, err := session.Run(ctx, query)
	if err != nil {
		return "", err
	}

	if err := store.AppendMessage(ctx, sessionID, memory.ConversationMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      "assistant",
		Content:   answer,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		a.logger.Warn("chat.history.append_failed", "error", err)
	}
	return answer, nil
}

func historyBlock(history []memory.ConversationMessage) string {
	var sb strings.Builder
	sb.WriteString("Bisheriger Gesprächsverlauf:\n")
	for _, msg := range history {
		label := msg.Role
		switch msg.Role {
		case "user":
			label = "Nutzer"
		case "assistant":
			label = "Assistent"
		}
		fmt.Fprintf(&sb, "\n%s: %s\n", label, msg.Content)
	}
	return sb.String()
}

func openConversationStore(ctx context.Context, a *app) (memory.ConversationStore, error) {
	if !a.cfg.History.Enabled {
		return memory.NewInMemoryConversation(), nil
	}
	return memory.NewSQLiteConversation(ctx, memory.SQLiteConfig{Path: a.cfg.History.Path})
}
