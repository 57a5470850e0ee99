// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"reflect"
	"testing"

	"github.com/nwiesmann/faktotum/pkg/config"
)

func TestParseGlobalFlags(t *testing.T) {
	flags, args, err := parseGlobalFlags([]string{"--config", "cfg.yaml", "--json", "ask", "--agent", "research", "hallo"})
	if err != nil {
		t.Fatalf("parseGlobalFlags: %v", err)
	}
	if flags.ConfigPath != "cfg.yaml" {
		t.Errorf("ConfigPath = %q, want cfg.yaml", flags.ConfigPath)
	}
	if !flags.JSON {
		t.Error("JSON flag not set")
	}
	want := []string{"ask", "--agent", "research", "hallo"}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}

func TestParseGlobalFlagsEqualsForm(t *testing.T) {
	flags, args, err := parseGlobalFlags([]string{"--config=cfg.yaml", "agents"})
	if err != nil {
		t.Fatalf("parseGlobalFlags: %v", err)
	}
	if flags.ConfigPath != "cfg.yaml" {
		t.Errorf("ConfigPath = %q, want cfg.yaml", flags.ConfigPath)
	}
	if len(args) != 1 || args[0] != "agents" {
		t.Errorf("args = %v, want [agents]", args)
	}
}

func TestParseGlobalFlagsUnknown(t *testing.T) {
	if _, _, err := parseGlobalFlags([]string{"--bogus"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestParseGlobalFlagsTerminator(t *testing.T) {
	_, args, err := parseGlobalFlags([]string{"--json", "--", "--not-a-flag"})
	if err != nil {
		t.Fatalf("parseGlobalFlags: %v", err)
	}
	if len(args) != 1 || args[0] != "--not-a-flag" {
		t.Errorf("args = %v, want [--not-a-flag]", args)
	}
}

func testApp() *app {
	return &app{
		cfg: &config.Config{DefaultAgent: "research"},
		aliases: map[string]string{
			"research":   "research",
			"res":        "research",
			"architekt":  "architekt",
			"arch":       "architekt",
			"supervisor": "supervisor",
		},
	}
}

func TestParseMentionKnownAlias(t *testing.T) {
	a := testApp()
	agentName, query := a.parseMention("@arch Wie sieht der Entwurf aus?")
	if agentName != "architekt" {
		t.Errorf("agent = %q, want architekt", agentName)
	}
	if query != "Wie sieht der Entwurf aus?" {
		t.Errorf("query = %q, mention not stripped", query)
	}
}

func TestParseMentionMidQuery(t *testing.T) {
	a := testApp()
	agentName, query := a.parseMention("Bitte @res um eine Antwort")
	if agentName != "research" {
		t.Errorf("agent = %q, want research", agentName)
	}
	if query != "Bitte um eine Antwort" {
		t.Errorf("query = %q", query)
	}
}

func TestParseMentionUnknownKeepsQuery(t *testing.T) {
	a := testApp()
	agentName, query := a.parseMention("@nobody Wer bist du?")
	if agentName != "" {
		t.Errorf("agent = %q, want empty", agentName)
	}
	if query != "@nobody Wer bist du?" {
		t.Errorf("query = %q, must stay untouched", query)
	}
}

func TestParseMentionCaseInsensitive(t *testing.T) {
	a := testApp()
	agentName, _ := a.parseMention("@Research bitte")
	if agentName != "research" {
		t.Errorf("agent = %q, want research", agentName)
	}
}

func TestRouteMessageMentionSwitchesAgent(t *testing.T) {
	a := testApp()
	name, message := a.routeMessage("@arch Entwirf das Schema", "research")
	if name != "architekt" {
		t.Errorf("agent = %q, want architekt", name)
	}
	if message != "Entwirf das Schema" {
		t.Errorf("message = %q, mention must be stripped", message)
	}
}

func TestRouteMessageFallsBackToDefault(t *testing.T) {
	a := testApp()
	name, message := a.routeMessage("Wie spät ist es?", "research")
	if name != "research" {
		t.Errorf("agent = %q, want research", name)
	}
	if message != "Wie spät ist es?" {
		t.Errorf("message = %q, must stay untouched", message)
	}
}

func TestRouteMessageUnknownMentionFallsBack(t *testing.T) {
	a := testApp()
	name, message := a.routeMessage("@nobody Hilfe", "research")
	if name != "research" {
		t.Errorf("agent = %q, want research", name)
	}
	if message != "@nobody Hilfe" {
		t.Errorf("message = %q, must stay untouched", message)
	}
}

func TestDefaultAgentFallback(t *testing.T) {
	a := testApp()
	a.cfg.DefaultAgent = ""
	if got := a.defaultAgent(); got != "research" {
		t.Errorf("defaultAgent = %q, want research", got)
	}
	a.cfg.DefaultAgent = "architekt"
	if got := a.defaultAgent(); got != "architekt" {
		t.Errorf("defaultAgent = %q, want architekt", got)
	}
}

func TestNormalizeCell(t *testing.T) {
	if got := normalizeCell("  "); got != "-" {
		t.Errorf("normalizeCell blank = %q, want -", got)
	}
	if got := normalizeCell("a\tb\n c"); got != "a b c" {
		t.Errorf("normalizeCell = %q", got)
	}
}
